/*
Package sqlite provides the SQLite-backed implementation of loyalty.Store.

PURPOSE:
  Implements the full persistence surface of the engine using SQLite.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  The point_transactions table is the ledger:
  - No UPDATE statements against it, anywhere in this package
  - No DELETE statements against it, anywhere in this package
  - Corrections are new adjust rows

KEY TABLES:
  point_transactions: Immutable ledger of all balance changes
  users, companies:   Participants with cached total projections
  forms, form_types:  Milestone instances and definitions
  redemptions:        Product claims with shipping snapshots
  user_actions:       Append-only audit trail

POINT STORAGE:
  Point amounts are stored as decimal strings and summed in Go, keeping
  half-reward bonuses exact instead of trusting REAL arithmetic.

TRANSACTIONS:
  WithTx hands callers a Store bound to one sql.Tx. Every method runs
  against either the pool or that transaction through the dbtx
  interface, so engine operations compose into one all-or-nothing unit.
  Status transitions are compare-and-set UPDATEs filtered on the source
  status; the affected-row count tells the caller who won the race.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/loyalty.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - loyalty/store.go: Interface definition and contracts
  - loyalty/ledger.go: Higher-level ledger helpers
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/loyalty-engine/loyalty"
)

// dbtx is the subset of sql.DB / sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements loyalty.Store over SQLite. A Store returned by WithTx
// shares the same methods but runs them inside one sql.Tx.
type Store struct {
	db *sql.DB // nil when the store is transaction-scoped
	q  dbtx
}

// New opens (or creates) a SQLite store at the given path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, q: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS companies (
		company_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT,
		industry TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		total_points TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL REFERENCES companies(company_id),
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		fullname TEXT,
		user_type TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT 'CUSTOMER',
		password_hash TEXT NOT NULL,
		program_sale_id TEXT,
		phone_number TEXT,
		job_title TEXT,
		total_points TEXT NOT NULL DEFAULT '0',
		accomplishment_total_points TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id);

	CREATE TABLE IF NOT EXISTS projects (
		project_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(user_id),
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);

	CREATE TABLE IF NOT EXISTS form_types (
		form_type_id INTEGER PRIMARY KEY AUTOINCREMENT,
		form_name TEXT NOT NULL,
		point_reward TEXT NOT NULL DEFAULT '0',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS forms (
		form_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(user_id),
		project_id INTEGER NOT NULL REFERENCES projects(project_id),
		form_type_id INTEGER NOT NULL REFERENCES form_types(form_type_id),
		status TEXT NOT NULL DEFAULT 'pending',
		form_data TEXT,
		note TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Milestone progression hot path: the accrual engine counts and
	-- groups forms by (user, project, status) on every approval.
	CREATE INDEX IF NOT EXISTS idx_forms_user_project_status
		ON forms(user_id, project_id, status);
	CREATE INDEX IF NOT EXISTS idx_forms_status ON forms(status);

	CREATE TABLE IF NOT EXISTS products (
		product_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		points_cost TEXT NOT NULL DEFAULT '0',
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS redemptions (
		redemption_id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(user_id),
		product_id INTEGER NOT NULL REFERENCES products(product_id),
		points_spent TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		fullname TEXT,
		email TEXT,
		phone_number TEXT,
		shipping_address TEXT,
		postal_code TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_redemptions_user ON redemptions(user_id);
	CREATE INDEX IF NOT EXISTS idx_redemptions_status ON redemptions(status);

	-- Append-only point ledger
	CREATE TABLE IF NOT EXISTS point_transactions (
		transaction_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(user_id),
		delta TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		form_id INTEGER REFERENCES forms(form_id),
		redemption_id INTEGER REFERENCES redemptions(redemption_id),
		description TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance reconstruction hot path
	CREATE INDEX IF NOT EXISTS idx_point_transactions_user
		ON point_transactions(user_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_point_transactions_type
		ON point_transactions(user_id, transaction_type);

	CREATE TABLE IF NOT EXISTS user_actions (
		action_id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(user_id),
		entity_type TEXT NOT NULL,
		action_type TEXT NOT NULL,
		form_id INTEGER REFERENCES forms(form_id),
		redemption_id INTEGER REFERENCES redemptions(redemption_id),
		note TEXT,
		created_at TEXT NOT NULL,
		CHECK (
			(entity_type = 'FORM' AND form_id IS NOT NULL AND redemption_id IS NULL) OR
			(entity_type = 'REDEEM' AND redemption_id IS NOT NULL AND form_id IS NULL)
		)
	);

	CREATE INDEX IF NOT EXISTS idx_user_actions_user
		ON user_actions(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS (WithTx)
// =============================================================================

// WithTx runs fn with a transaction-scoped Store. Nested calls join the
// enclosing transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx loyalty.Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return perr("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{q: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return perr("commit transaction", err)
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = `user_id, company_id, username, email, fullname, user_type, level,
	password_hash, program_sale_id, phone_number, job_title,
	total_points, accomplishment_total_points, is_active, created_at, updated_at`

func (s *Store) GetUser(ctx context.Context, id loyalty.UserID) (*loyalty.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*loyalty.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, u *loyalty.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO users
		(company_id, username, email, fullname, user_type, level, password_hash,
		 program_sale_id, phone_number, job_title, total_points,
		 accomplishment_total_points, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.CompanyID, u.Username, u.Email, u.Fullname, u.Tier, u.Level,
		u.PasswordHash, u.ProgramSaleID, u.PhoneNumber, u.JobTitle,
		u.TotalPoints.String(), u.AccomplishmentPoints.String(),
		boolInt(u.Active), formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &loyalty.ValidationError{Field: "username", Message: "username or email already taken"}
		}
		return perr("create user", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create user", err)
	}
	u.ID = loyalty.UserID(id)
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]loyalty.User, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id`)
	if err != nil {
		return nil, perr("list users", err)
	}
	defer rows.Close()

	var users []loyalty.User
	for rows.Next() {
		u, err := scanUserRow(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// AddUserPoints increments the cached totals. Point columns hold decimal
// strings, so the arithmetic happens in Go inside the caller's transaction.
func (s *Store) AddUserPoints(ctx context.Context, id loyalty.UserID, total, accomplishment loyalty.Points) error {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	return s.SetUserPoints(ctx, id,
		u.TotalPoints.Add(total),
		u.AccomplishmentPoints.Add(accomplishment))
}

func (s *Store) SetUserPoints(ctx context.Context, id loyalty.UserID, total, accomplishment loyalty.Points) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET total_points = ?, accomplishment_total_points = ?, updated_at = ?
		WHERE user_id = ?`,
		total.String(), accomplishment.String(), formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("set user points", err)
	}
	return nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id loyalty.UserID, fullname, phone, jobTitle string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET fullname = ?, phone_number = ?, job_title = ?, updated_at = ?
		WHERE user_id = ?`,
		fullname, phone, jobTitle, formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("update user profile", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loyalty.ErrUserNotFound
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, id loyalty.UserID, active bool) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE user_id = ?`,
		boolInt(active), formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("set user active", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return loyalty.ErrUserNotFound
	}
	return nil
}

func (s *Store) ReassignUsers(ctx context.Context, from, to loyalty.CompanyID) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE users SET company_id = ?, updated_at = ? WHERE company_id = ?`,
		to, formatTime(time.Now().UTC()), from)
	if err != nil {
		return perr("reassign users", err)
	}
	return nil
}

func (s *Store) DeactivateUsersByCompany(ctx context.Context, id loyalty.CompanyID) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE users
		SET is_active = 0, total_points = '0', accomplishment_total_points = '0', updated_at = ?
		WHERE company_id = ?`,
		formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("deactivate users", err)
	}
	return nil
}

// =============================================================================
// COMPANIES
// =============================================================================

func (s *Store) GetCompany(ctx context.Context, id loyalty.CompanyID) (*loyalty.Company, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT company_id, name, address, industry, status, total_points, created_at, updated_at
		FROM companies WHERE company_id = ?`, id)
	return scanCompany(row)
}

func (s *Store) CreateCompany(ctx context.Context, c *loyalty.Company) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = loyalty.CompanyActive
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO companies (name, address, industry, status, total_points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Address, c.Industry, c.Status, c.TotalPoints.String(),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return perr("create company", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create company", err)
	}
	c.ID = loyalty.CompanyID(id)
	return nil
}

func (s *Store) ListCompanies(ctx context.Context) ([]loyalty.Company, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT company_id, name, address, industry, status, total_points, created_at, updated_at
		FROM companies ORDER BY company_id`)
	if err != nil {
		return nil, perr("list companies", err)
	}
	defer rows.Close()

	var companies []loyalty.Company
	for rows.Next() {
		c, err := scanCompanyRow(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}

func (s *Store) AddCompanyPoints(ctx context.Context, id loyalty.CompanyID, delta loyalty.Points) error {
	c, err := s.GetCompany(ctx, id)
	if err != nil {
		return err
	}
	return s.SetCompanyPoints(ctx, id, c.TotalPoints.Add(delta))
}

func (s *Store) SetCompanyPoints(ctx context.Context, id loyalty.CompanyID, total loyalty.Points) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE companies SET total_points = ?, updated_at = ? WHERE company_id = ?`,
		total.String(), formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("set company points", err)
	}
	return nil
}

func (s *Store) SetCompanyStatus(ctx context.Context, id loyalty.CompanyID, status loyalty.CompanyStatus) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE companies SET status = ?, updated_at = ? WHERE company_id = ?`,
		status, formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("set company status", err)
	}
	return nil
}

func (s *Store) RemoveCompany(ctx context.Context, id loyalty.CompanyID) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM companies WHERE company_id = ?`, id)
	if err != nil {
		return perr("remove company", err)
	}
	return nil
}

func (s *Store) SumAccomplishmentByCompany(ctx context.Context, id loyalty.CompanyID) (loyalty.Points, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT accomplishment_total_points FROM users
		WHERE company_id = ? AND is_active = 1 AND level = 'CUSTOMER'`, id)
	if err != nil {
		return loyalty.ZeroPoints(), perr("sum company accomplishment", err)
	}
	defer rows.Close()

	return sumPointsRows(rows)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) GetProject(ctx context.Context, id loyalty.ProjectID) (*loyalty.Project, error) {
	var (
		p         loyalty.Project
		createdAt string
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT project_id, user_id, name, created_at FROM projects WHERE project_id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrProjectNotFound
	}
	if err != nil {
		return nil, perr("get project", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, p *loyalty.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO projects (user_id, name, created_at) VALUES (?, ?, ?)`,
		p.UserID, p.Name, formatTime(now))
	if err != nil {
		return perr("create project", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create project", err)
	}
	p.ID = loyalty.ProjectID(id)
	return nil
}

func (s *Store) ListProjectsByUser(ctx context.Context, id loyalty.UserID) ([]loyalty.Project, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT project_id, user_id, name, created_at FROM projects WHERE user_id = ? ORDER BY project_id`, id)
	if err != nil {
		return nil, perr("list projects", err)
	}
	defer rows.Close()

	var projects []loyalty.Project
	for rows.Next() {
		var (
			p         loyalty.Project
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &createdAt); err != nil {
			return nil, perr("scan project", err)
		}
		p.CreatedAt = parseTime(createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// =============================================================================
// FORM TYPES
// =============================================================================

func (s *Store) GetFormType(ctx context.Context, id loyalty.FormTypeID) (*loyalty.FormType, error) {
	var (
		ft        loyalty.FormType
		reward    string
		active    int
		createdAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT form_type_id, form_name, point_reward, is_active, created_at
		FROM form_types WHERE form_type_id = ?`, id,
	).Scan(&ft.ID, &ft.Name, &reward, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrFormTypeNotFound
	}
	if err != nil {
		return nil, perr("get form type", err)
	}
	ft.PointReward = loyalty.MustParsePoints(reward)
	ft.Active = active == 1
	ft.CreatedAt = parseTime(createdAt)
	return &ft, nil
}

func (s *Store) CreateFormType(ctx context.Context, ft *loyalty.FormType) error {
	now := time.Now().UTC()
	ft.CreatedAt = now

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO form_types (form_name, point_reward, is_active, created_at) VALUES (?, ?, ?, ?)`,
		ft.Name, ft.PointReward.String(), boolInt(ft.Active), formatTime(now))
	if err != nil {
		return perr("create form type", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create form type", err)
	}
	ft.ID = loyalty.FormTypeID(id)
	return nil
}

func (s *Store) ListFormTypes(ctx context.Context) ([]loyalty.FormType, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT form_type_id, form_name, point_reward, is_active, created_at
		FROM form_types ORDER BY form_type_id`)
	if err != nil {
		return nil, perr("list form types", err)
	}
	defer rows.Close()

	var types []loyalty.FormType
	for rows.Next() {
		var (
			ft        loyalty.FormType
			reward    string
			active    int
			createdAt string
		)
		if err := rows.Scan(&ft.ID, &ft.Name, &reward, &active, &createdAt); err != nil {
			return nil, perr("scan form type", err)
		}
		ft.PointReward = loyalty.MustParsePoints(reward)
		ft.Active = active == 1
		ft.CreatedAt = parseTime(createdAt)
		types = append(types, ft)
	}
	return types, rows.Err()
}

// =============================================================================
// FORMS
// =============================================================================

const formColumns = `form_id, user_id, project_id, form_type_id, status, form_data, note, created_at, updated_at`

func (s *Store) GetForm(ctx context.Context, id loyalty.FormID) (*loyalty.Form, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+formColumns+` FROM forms WHERE form_id = ?`, id)
	return scanForm(row)
}

func (s *Store) CreateForm(ctx context.Context, f *loyalty.Form) error {
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	dataJSON, err := json.Marshal(f.Data)
	if err != nil {
		return &loyalty.ValidationError{Field: "form_data", Message: "not serializable"}
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO forms (user_id, project_id, form_type_id, status, form_data, note, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.UserID, f.ProjectID, f.FormTypeID, f.Status, string(dataJSON), f.Note,
		formatTime(f.CreatedAt), formatTime(now))
	if err != nil {
		return perr("create form", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create form", err)
	}
	f.ID = loyalty.FormID(id)
	return nil
}

func (s *Store) ListFormsByProject(ctx context.Context, userID loyalty.UserID, projectID loyalty.ProjectID, statuses []loyalty.FormStatus) ([]loyalty.Form, error) {
	query := `SELECT ` + formColumns + ` FROM forms WHERE user_id = ? AND project_id = ?`
	args := []any{userID, projectID}

	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(statuses)-1) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, perr("list forms", err)
	}
	defer rows.Close()

	var forms []loyalty.Form
	for rows.Next() {
		f, err := scanFormRow(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *f)
	}
	return forms, rows.Err()
}

// TransitionForm is the status compare-and-set. The WHERE clause on the
// source status makes concurrent approvals race safely: only one UPDATE
// affects the row.
func (s *Store) TransitionForm(ctx context.Context, id loyalty.FormID, from, to loyalty.FormStatus, note string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE forms SET status = ?, note = ?, updated_at = ?
		WHERE form_id = ? AND status = ?`,
		to, note, formatTime(time.Now().UTC()), id, from)
	if err != nil {
		return false, perr("transition form", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, perr("transition form", err)
	}
	return affected > 0, nil
}

func (s *Store) CountFormsByStatus(ctx context.Context, userID loyalty.UserID, projectID loyalty.ProjectID, status loyalty.FormStatus) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM forms WHERE user_id = ? AND project_id = ? AND status = ?`,
		userID, projectID, status,
	).Scan(&count)
	if err != nil {
		return 0, perr("count forms", err)
	}
	return count, nil
}

func (s *Store) FormTypeIDsByStatus(ctx context.Context, userID loyalty.UserID, projectID loyalty.ProjectID, status loyalty.FormStatus) ([]loyalty.FormTypeID, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT form_type_id FROM forms
		WHERE user_id = ? AND project_id = ? AND status = ?
		ORDER BY form_type_id`,
		userID, projectID, status)
	if err != nil {
		return nil, perr("form type ids by status", err)
	}
	defer rows.Close()

	var ids []loyalty.FormTypeID
	for rows.Next() {
		var id loyalty.FormTypeID
		if err := rows.Scan(&id); err != nil {
			return nil, perr("scan form type id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// PRODUCTS
// =============================================================================

func (s *Store) GetProduct(ctx context.Context, id loyalty.ProductID) (*loyalty.Product, error) {
	var (
		p         loyalty.Product
		cost      string
		active    int
		createdAt string
		updatedAt string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT product_id, name, description, points_cost, stock_quantity, is_active, created_at, updated_at
		FROM products WHERE product_id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &cost, &p.StockQuantity, &active, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrProductNotFound
	}
	if err != nil {
		return nil, perr("get product", err)
	}
	p.PointsCost = loyalty.MustParsePoints(cost)
	p.Active = active == 1
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *loyalty.Product) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO products (name, description, points_cost, stock_quantity, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Description, p.PointsCost.String(), p.StockQuantity,
		boolInt(p.Active), formatTime(now), formatTime(now))
	if err != nil {
		return perr("create product", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create product", err)
	}
	p.ID = loyalty.ProductID(id)
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]loyalty.Product, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT product_id, name, description, points_cost, stock_quantity, is_active, created_at, updated_at
		FROM products ORDER BY product_id`)
	if err != nil {
		return nil, perr("list products", err)
	}
	defer rows.Close()

	var products []loyalty.Product
	for rows.Next() {
		var (
			p         loyalty.Product
			cost      string
			active    int
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &cost, &p.StockQuantity,
			&active, &createdAt, &updatedAt); err != nil {
			return nil, perr("scan product", err)
		}
		p.PointsCost = loyalty.MustParsePoints(cost)
		p.Active = active == 1
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) AdjustProductStock(ctx context.Context, id loyalty.ProductID, delta int) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE product_id = ?`,
		delta, formatTime(time.Now().UTC()), id)
	if err != nil {
		return perr("adjust product stock", err)
	}
	return nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

const redemptionColumns = `redemption_id, user_id, product_id, points_spent, status,
	fullname, email, phone_number, shipping_address, postal_code, notes, created_at, updated_at`

func (s *Store) GetRedemption(ctx context.Context, id loyalty.RedemptionID) (*loyalty.Redemption, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions WHERE redemption_id = ?`, id)
	return scanRedemption(row)
}

func (s *Store) CreateRedemption(ctx context.Context, r *loyalty.Redemption) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO redemptions
		(user_id, product_id, points_spent, status, fullname, email, phone_number,
		 shipping_address, postal_code, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.ProductID, r.PointsSpent.String(), r.Status,
		r.Shipping.Fullname, r.Shipping.Email, r.Shipping.PhoneNumber,
		r.Shipping.Address, r.Shipping.PostalCode, r.Shipping.Notes,
		formatTime(r.CreatedAt), formatTime(now))
	if err != nil {
		return perr("create redemption", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return perr("create redemption", err)
	}
	r.ID = loyalty.RedemptionID(id)
	return nil
}

func (s *Store) ListRedemptions(ctx context.Context) ([]loyalty.Redemption, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+redemptionColumns+` FROM redemptions ORDER BY created_at ASC`)
	if err != nil {
		return nil, perr("list redemptions", err)
	}
	defer rows.Close()

	var redemptions []loyalty.Redemption
	for rows.Next() {
		r, err := scanRedemptionRow(rows)
		if err != nil {
			return nil, err
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

func (s *Store) TransitionRedemption(ctx context.Context, id loyalty.RedemptionID, from, to loyalty.RedemptionStatus) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE redemptions SET status = ?, updated_at = ?
		WHERE redemption_id = ? AND status = ?`,
		to, formatTime(time.Now().UTC()), id, from)
	if err != nil {
		return false, perr("transition redemption", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, perr("transition redemption", err)
	}
	return affected > 0, nil
}

// =============================================================================
// POINT LEDGER (append-only)
// =============================================================================

// AppendTransaction is the ledger's only write. There is deliberately no
// update or delete counterpart.
func (s *Store) AppendTransaction(ctx context.Context, tx *loyalty.PointTransaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO point_transactions
		(transaction_id, user_id, delta, transaction_type, form_id, redemption_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Delta.String(), tx.Type,
		nullFormID(tx.FormID), nullRedemptionID(tx.RedemptionID),
		tx.Description, formatTime(tx.CreatedAt))
	if err != nil {
		return perr("append transaction", err)
	}
	return nil
}

func (s *Store) TransactionsByUser(ctx context.Context, id loyalty.UserID) ([]loyalty.PointTransaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT transaction_id, user_id, delta, transaction_type, form_id, redemption_id, description, created_at
		FROM point_transactions
		WHERE user_id = ?
		ORDER BY created_at ASC, transaction_id ASC`, id)
	if err != nil {
		return nil, perr("transactions by user", err)
	}
	defer rows.Close()

	var txs []loyalty.PointTransaction
	for rows.Next() {
		var (
			tx           loyalty.PointTransaction
			delta        string
			formID       sql.NullInt64
			redemptionID sql.NullInt64
			description  sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &delta, &tx.Type,
			&formID, &redemptionID, &description, &createdAt); err != nil {
			return nil, perr("scan transaction", err)
		}
		tx.Delta = loyalty.MustParsePoints(delta)
		if formID.Valid {
			fid := loyalty.FormID(formID.Int64)
			tx.FormID = &fid
		}
		if redemptionID.Valid {
			rid := loyalty.RedemptionID(redemptionID.Int64)
			tx.RedemptionID = &rid
		}
		tx.Description = description.String
		tx.CreatedAt = parseTime(createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// SumTransactionsByUser reconstructs the balance by summation. The deltas
// are decimal strings, so the sum runs in Go rather than SQL.
func (s *Store) SumTransactionsByUser(ctx context.Context, id loyalty.UserID) (loyalty.Points, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT delta FROM point_transactions WHERE user_id = ?`, id)
	if err != nil {
		return loyalty.ZeroPoints(), perr("sum transactions", err)
	}
	defer rows.Close()

	return sumPointsRows(rows)
}

func (s *Store) SumEarnedByUser(ctx context.Context, id loyalty.UserID) (loyalty.Points, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT delta FROM point_transactions WHERE user_id = ? AND transaction_type = 'earn'`, id)
	if err != nil {
		return loyalty.ZeroPoints(), perr("sum earned", err)
	}
	defer rows.Close()

	return sumPointsRows(rows)
}

// =============================================================================
// USER ACTIONS (audit)
// =============================================================================

func (s *Store) RecordAction(ctx context.Context, a *loyalty.UserAction) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO user_actions
		(action_id, user_id, entity_type, action_type, form_id, redemption_id, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Ref.Entity, a.Action,
		nullFormID(a.Ref.FormID), nullRedemptionID(a.Ref.RedemptionID),
		a.Note, formatTime(a.CreatedAt))
	if err != nil {
		return perr("record action", err)
	}
	return nil
}

func (s *Store) ActionsByUser(ctx context.Context, id loyalty.UserID) ([]loyalty.UserAction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT action_id, user_id, entity_type, action_type, form_id, redemption_id, note, created_at
		FROM user_actions
		WHERE user_id = ?
		ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, perr("actions by user", err)
	}
	defer rows.Close()

	var actions []loyalty.UserAction
	for rows.Next() {
		var (
			a            loyalty.UserAction
			formID       sql.NullInt64
			redemptionID sql.NullInt64
			note         sql.NullString
			createdAt    string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Ref.Entity, &a.Action,
			&formID, &redemptionID, &note, &createdAt); err != nil {
			return nil, perr("scan action", err)
		}
		if formID.Valid {
			fid := loyalty.FormID(formID.Int64)
			a.Ref.FormID = &fid
		}
		if redemptionID.Valid {
			rid := loyalty.RedemptionID(redemptionID.Int64)
			a.Ref.RedemptionID = &rid
		}
		a.Note = note.String
		a.CreatedAt = parseTime(createdAt)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserFields(sc rowScanner) (*loyalty.User, error) {
	var (
		u              loyalty.User
		fullname       sql.NullString
		programSaleID  sql.NullString
		phoneNumber    sql.NullString
		jobTitle       sql.NullString
		total          string
		accomplishment string
		active         int
		createdAt      string
		updatedAt      string
	)
	err := sc.Scan(&u.ID, &u.CompanyID, &u.Username, &u.Email, &fullname,
		&u.Tier, &u.Level, &u.PasswordHash, &programSaleID, &phoneNumber, &jobTitle,
		&total, &accomplishment, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	u.Fullname = fullname.String
	u.ProgramSaleID = programSaleID.String
	u.PhoneNumber = phoneNumber.String
	u.JobTitle = jobTitle.String
	u.TotalPoints = loyalty.MustParsePoints(total)
	u.AccomplishmentPoints = loyalty.MustParsePoints(accomplishment)
	u.Active = active == 1
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return &u, nil
}

func scanUser(row *sql.Row) (*loyalty.User, error) {
	u, err := scanUserFields(row)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrUserNotFound
	}
	if err != nil {
		return nil, perr("get user", err)
	}
	return u, nil
}

func scanUserRow(rows *sql.Rows) (*loyalty.User, error) {
	u, err := scanUserFields(rows)
	if err != nil {
		return nil, perr("scan user", err)
	}
	return u, nil
}

func scanCompanyFields(sc rowScanner) (*loyalty.Company, error) {
	var (
		c         loyalty.Company
		address   sql.NullString
		industry  sql.NullString
		total     string
		createdAt string
		updatedAt string
	)
	err := sc.Scan(&c.ID, &c.Name, &address, &industry, &c.Status, &total, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.Address = address.String
	c.Industry = industry.String
	c.TotalPoints = loyalty.MustParsePoints(total)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func scanCompany(row *sql.Row) (*loyalty.Company, error) {
	c, err := scanCompanyFields(row)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrCompanyNotFound
	}
	if err != nil {
		return nil, perr("get company", err)
	}
	return c, nil
}

func scanCompanyRow(rows *sql.Rows) (*loyalty.Company, error) {
	c, err := scanCompanyFields(rows)
	if err != nil {
		return nil, perr("scan company", err)
	}
	return c, nil
}

func scanFormFields(sc rowScanner) (*loyalty.Form, error) {
	var (
		f         loyalty.Form
		dataJSON  sql.NullString
		note      sql.NullString
		createdAt string
		updatedAt string
	)
	err := sc.Scan(&f.ID, &f.UserID, &f.ProjectID, &f.FormTypeID, &f.Status,
		&dataJSON, &note, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &f.Data); err != nil {
			return nil, err
		}
	}
	f.Note = note.String
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

func scanForm(row *sql.Row) (*loyalty.Form, error) {
	f, err := scanFormFields(row)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrFormNotFound
	}
	if err != nil {
		return nil, perr("get form", err)
	}
	return f, nil
}

func scanFormRow(rows *sql.Rows) (*loyalty.Form, error) {
	f, err := scanFormFields(rows)
	if err != nil {
		return nil, perr("scan form", err)
	}
	return f, nil
}

func scanRedemptionFields(sc rowScanner) (*loyalty.Redemption, error) {
	var (
		r         loyalty.Redemption
		spent     string
		notes     sql.NullString
		createdAt string
		updatedAt string
	)
	err := sc.Scan(&r.ID, &r.UserID, &r.ProductID, &spent, &r.Status,
		&r.Shipping.Fullname, &r.Shipping.Email, &r.Shipping.PhoneNumber,
		&r.Shipping.Address, &r.Shipping.PostalCode, &notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	r.PointsSpent = loyalty.MustParsePoints(spent)
	r.Shipping.Notes = notes.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

func scanRedemption(row *sql.Row) (*loyalty.Redemption, error) {
	r, err := scanRedemptionFields(row)
	if err == sql.ErrNoRows {
		return nil, loyalty.ErrRedemptionNotFound
	}
	if err != nil {
		return nil, perr("get redemption", err)
	}
	return r, nil
}

func scanRedemptionRow(rows *sql.Rows) (*loyalty.Redemption, error) {
	r, err := scanRedemptionFields(rows)
	if err != nil {
		return nil, perr("scan redemption", err)
	}
	return r, nil
}

// =============================================================================
// RESET (demo/test only)
// =============================================================================

// Reset deletes every row in dependency order and restarts the integer
// id sequences.
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{
		"user_actions",
		"point_transactions",
		"redemptions",
		"forms",
		"products",
		"form_types",
		"projects",
		"users",
		"companies",
	}
	for _, table := range tables {
		if _, err := s.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return perr("reset "+table, err)
		}
	}
	if _, err := s.q.ExecContext(ctx, "DELETE FROM sqlite_sequence"); err != nil {
		return perr("reset sequences", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

func sumPointsRows(rows *sql.Rows) (loyalty.Points, error) {
	sum := loyalty.ZeroPoints()
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return loyalty.ZeroPoints(), perr("scan points", err)
		}
		sum = sum.Add(loyalty.MustParsePoints(value))
	}
	return sum, rows.Err()
}

func perr(op string, err error) error {
	return &loyalty.PersistenceError{Op: op, Err: err}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFormID(id *loyalty.FormID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func nullRedemptionID(id *loyalty.RedemptionID) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
