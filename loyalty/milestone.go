/*
milestone.go - Project completion detection and backfill bonus

PURPOSE:
  A project is a sequence of milestone forms. This file answers two
  questions for the accrual engine:
    1. Has the user completed the project for their tier?
    2. Does the current approval trigger the out-of-order backfill bonus?

BACKFILL BONUS:
  The program rewards finishing the hard milestones (5 and 6) even when
  the early ones are skipped. Once both 5 and 6 are approved, every
  milestone in 1-4 that is still missing contributes half its base
  reward. The bonus is computed per approval event over the milestones
  missing at that moment.

BOUNDS SAFETY:
  Reward lookups are keyed by FormTypeID, never by slice position, so a
  catalog with fewer than 6 form types yields a zero contribution for
  the missing definitions instead of an index panic.
*/
package loyalty

// ProjectComplete reports whether qualifying forms (approved or submitted,
// depending on the call site) amount to a complete project for the tier.
func ProjectComplete(tier UserTier, qualifying int) bool {
	return qualifying == tier.MilestonesRequired()
}

// backfillAnchors are the milestones that must both be complete before the
// backfill bonus applies.
var backfillAnchors = []FormTypeID{5, 6}

// backfillTargets are the milestones eligible for the half-reward backfill.
var backfillTargets = []FormTypeID{1, 2, 3, 4}

// RewardIndex builds a reward lookup keyed by form type ID.
func RewardIndex(types []FormType) map[FormTypeID]Points {
	idx := make(map[FormTypeID]Points, len(types))
	for _, ft := range types {
		idx[ft.ID] = ft.PointReward
	}
	return idx
}

// CompletedSet turns a list of completed form type IDs into a set.
func CompletedSet(ids []FormTypeID) map[FormTypeID]bool {
	set := make(map[FormTypeID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// BackfillBonus computes the out-of-order completion bonus: if milestones
// 5 and 6 are both complete, each of milestones 1-4 not yet complete
// contributes half its base reward. Form types absent from the catalog
// contribute nothing.
func BackfillBonus(rewards map[FormTypeID]Points, completed map[FormTypeID]bool) Points {
	for _, anchor := range backfillAnchors {
		if !completed[anchor] {
			return ZeroPoints()
		}
	}

	bonus := ZeroPoints()
	for _, target := range backfillTargets {
		if completed[target] {
			continue
		}
		reward, ok := rewards[target]
		if !ok {
			continue
		}
		bonus = bonus.Add(reward.Half())
	}
	return bonus
}
