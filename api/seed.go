/*
seed.go - Demo data loader

PURPOSE:
  Populates the database with a realistic demo program: an operator
  account, a partner company with two customers, the six milestone
  definitions, a small product catalog, and one customer part-way
  through their milestones. Useful for demos and manual API testing.

USAGE VIA API:
  POST /api/admin/seed        (operator token required)

NOTE:
  Seeding resets the database first. Development and demo environments
  only.

SEE ALSO:
  - handlers.go: The regular API handlers
  - store/sqlite: Reset implementation
*/
package api

import (
	"context"
	"net/http"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/loyalty"
)

// Seed resets the database and loads the demo program.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Store.Reset(ctx); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.loadDemoProgram(ctx); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}

func (h *Handler) loadDemoProgram(ctx context.Context) error {
	operatorHash, err := auth.HashPassword("operator")
	if err != nil {
		return err
	}
	customerHash, err := auth.HashPassword("customer")
	if err != nil {
		return err
	}

	company := &loyalty.Company{Name: "Northwind Installations", TotalPoints: loyalty.ZeroPoints()}
	if err := h.Store.CreateCompany(ctx, company); err != nil {
		return err
	}

	operator := &loyalty.User{
		CompanyID:            company.ID,
		Username:             "operator",
		Email:                "operator@example.com",
		Tier:                 loyalty.TierT1,
		Level:                loyalty.LevelInternal,
		PasswordHash:         operatorHash,
		TotalPoints:          loyalty.ZeroPoints(),
		AccomplishmentPoints: loyalty.ZeroPoints(),
		Active:               true,
	}
	if err := h.Store.CreateUser(ctx, operator); err != nil {
		return err
	}

	customers := []*loyalty.User{
		{Username: "dana", Email: "dana@northwind.example", Tier: loyalty.TierT2},
		{Username: "miguel", Email: "miguel@northwind.example", Tier: loyalty.TierT1},
	}
	for _, c := range customers {
		c.CompanyID = company.ID
		c.Level = loyalty.LevelCustomer
		c.PasswordHash = customerHash
		c.TotalPoints = loyalty.ZeroPoints()
		c.AccomplishmentPoints = loyalty.ZeroPoints()
		c.Active = true
		if err := h.Store.CreateUser(ctx, c); err != nil {
			return err
		}
	}

	milestones := []struct {
		name   string
		reward int64
	}{
		{"Site survey", 100},
		{"Installation plan", 150},
		{"Equipment install", 300},
		{"Commissioning", 400},
		{"Customer training", 500},
		{"Final acceptance", 600},
	}
	for _, m := range milestones {
		ft := &loyalty.FormType{
			Name:        m.name,
			PointReward: loyalty.NewPoints(m.reward),
			Active:      true,
		}
		if err := h.Store.CreateFormType(ctx, ft); err != nil {
			return err
		}
	}

	products := []*loyalty.Product{
		{Name: "Branded jacket", Description: "Softshell jacket with program logo", PointsCost: loyalty.NewPoints(300), StockQuantity: 25, Active: true},
		{Name: "Toolkit upgrade", Description: "Professional installer toolkit", PointsCost: loyalty.NewPoints(800), StockQuantity: 10, Active: true},
		{Name: "Conference ticket", Description: "Annual partner conference pass", PointsCost: loyalty.NewPoints(2000), StockQuantity: 5, Active: true},
	}
	for _, p := range products {
		if err := h.Store.CreateProduct(ctx, p); err != nil {
			return err
		}
	}

	// Walk the first customer part-way through a project so the demo has
	// ledger history: two milestones approved, one pending review.
	dana := customers[0]
	project := &loyalty.Project{UserID: dana.ID, Name: "Harbor district rollout"}
	if err := h.Store.CreateProject(ctx, project); err != nil {
		return err
	}

	types, err := h.Store.ListFormTypes(ctx)
	if err != nil {
		return err
	}
	for i, ft := range types {
		if i >= 3 {
			break
		}
		result, err := h.Engine.SubmitForm(ctx, dana.ID, project.ID, ft.ID, nil)
		if err != nil {
			return err
		}
		if i < 2 {
			if _, err := h.Engine.ApproveForm(ctx, result.Form.ID, 20+10*i); err != nil {
				return err
			}
		}
	}

	return nil
}
