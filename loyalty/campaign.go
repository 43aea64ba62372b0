/*
campaign.go - Time-windowed promotional rules

PURPOSE:
  Campaign bonuses are marketing-driven and change between program waves,
  so the cutoff dates and bonus values live here as configuration rather
  than literals inside the accrual engine. A new campaign is a new
  Campaign value, not a code change.

RULES:
  PromoBonus:        Extra points when a specific milestone is approved
                     before the cutoff with its prerequisites complete.
  SubmissionWindow:  Completion at submission time only counts while the
                     submission window is open.
*/
package loyalty

import "time"

// Campaign holds the promotional rules for one program wave.
type Campaign struct {
	// PromoBonus is awarded when PromoMilestone is approved strictly
	// before PromoCutoff (day granularity) and every milestone in
	// PromoPrerequisites is already approved.
	PromoBonus         Points
	PromoCutoff        time.Time
	PromoMilestone     FormTypeID
	PromoPrerequisites []FormTypeID

	// SubmissionCutoff closes the window in which a full set of
	// submitted forms reports project completion to the submitter.
	SubmissionCutoff time.Time
}

// DefaultCampaign returns the rules of the original program wave.
func DefaultCampaign() Campaign {
	return Campaign{
		PromoBonus:         NewPoints(200),
		PromoCutoff:        time.Date(2024, time.December, 18, 0, 0, 0, 0, time.UTC),
		PromoMilestone:     3,
		PromoPrerequisites: []FormTypeID{1, 2},
		SubmissionCutoff:   time.Date(2024, time.December, 14, 0, 0, 0, 0, time.UTC),
	}
}

// beforeDay reports whether t falls on a day strictly before cutoff.
func beforeDay(t, cutoff time.Time) bool {
	ty, tm, td := t.UTC().Date()
	cy, cm, cd := cutoff.UTC().Date()
	day := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	cut := time.Date(cy, cm, cd, 0, 0, 0, 0, time.UTC)
	return day.Before(cut)
}

// PromoActive reports whether the promotional window is open at t.
func (c Campaign) PromoActive(t time.Time) bool {
	return beforeDay(t, c.PromoCutoff)
}

// SubmissionWindowOpen reports whether completion detection at submission
// time still applies at t.
func (c Campaign) SubmissionWindowOpen(t time.Time) bool {
	return beforeDay(t, c.SubmissionCutoff)
}

// PromoBonusFor computes the promotional bonus for approving formTypeID at
// time now, given the set of already-approved milestone IDs (which includes
// the one being approved).
func (c Campaign) PromoBonusFor(now time.Time, approved map[FormTypeID]bool, formTypeID FormTypeID) Points {
	if !c.PromoActive(now) {
		return ZeroPoints()
	}
	if formTypeID != c.PromoMilestone {
		return ZeroPoints()
	}
	for _, pre := range c.PromoPrerequisites {
		if !approved[pre] {
			return ZeroPoints()
		}
	}
	return c.PromoBonus
}
