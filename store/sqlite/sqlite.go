/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements engine.Store and engine.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:   Staffable people, with the derived allocated_pct and status
  projects:    Projects with the derived allocated/to_be_allocated counts
  demands:     Skill-scoped headcount requirements per project
  allocations: Employee-to-project assignments with percentage and window

DERIVED FIELDS:
  allocated_pct, allocated, and to_be_allocated are written only through the
  narrow setters; the reconciliation engine owns them. Identity fields are
  written through Save*.

INDEXES:
  Critical indexes for performance:
  - idx_allocations_employee_status: Budget sums per employee (hot path)
  - idx_allocations_project_status:  Resource counts per project
  - idx_allocations_status:          Sweeper scan over Active allocations

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on the handle. WithTx holds the write
  lock for the duration of the transaction; the transaction-scoped store runs
  its statements on the sql.Tx without re-locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/allocations.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  eng := engine.New(st, nil)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/allocation-engine/engine"
)

// Store implements engine.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Bench',
		allocated_pct TEXT NOT NULL DEFAULT '0',
		skills TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_employees_status ON employees(status);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Planned',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT '',
		external_ref TEXT NOT NULL DEFAULT '',
		required INTEGER NOT NULL DEFAULT 0,
		allocated INTEGER NOT NULL DEFAULT 0,
		to_be_allocated INTEGER NOT NULL DEFAULT 0,
		manual_required BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);

	CREATE TABLE IF NOT EXISTS demands (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		skill TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_demands_project ON demands(project_id);

	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		percentage TEXT NOT NULL DEFAULT '100',
		status TEXT NOT NULL DEFAULT 'Active',
		start_date TEXT NOT NULL DEFAULT '',
		end_date TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_employee_status
		ON allocations(employee_id, status);
	CREATE INDEX IF NOT EXISTS idx_allocations_project_status
		ON allocations(project_id, status);
	CREATE INDEX IF NOT EXISTS idx_allocations_status
		ON allocations(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ENCODING HELPERS
// =============================================================================

func encodeDate(d engine.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func decodeDate(s string) engine.Date {
	if s == "" {
		return engine.Date{}
	}
	d, err := engine.ParseDate(s)
	if err != nil {
		return engine.Date{}
	}
	return d
}

func encodeSkills(skills []string) string {
	return strings.Join(skills, ",")
}

func decodeSkills(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &engine.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func (s *Store) GetEmployee(ctx context.Context, id string) (*engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEmployee(ctx, s.db, id)
}

func getEmployee(ctx context.Context, q dbtx, id string) (*engine.Employee, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, status, allocated_pct, skills FROM employees WHERE id = ?`, id)

	var e engine.Employee
	var pct, skills string
	err := row.Scan(&e.ID, &e.Name, &e.Status, &pct, &skills)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}
	e.AllocatedPercentage = engine.PercentFromString(pct)
	e.Skills = decodeSkills(skills)
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listEmployees(ctx, s.db)
}

func listEmployees(ctx context.Context, q dbtx) ([]engine.Employee, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, status, allocated_pct, skills FROM employees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var out []engine.Employee
	for rows.Next() {
		var e engine.Employee
		var pct, skills string
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &pct, &skills); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.AllocatedPercentage = engine.PercentFromString(pct)
		e.Skills = decodeSkills(skills)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveEmployee(ctx context.Context, e engine.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEmployee(ctx, s.db, e)
}

func saveEmployee(ctx context.Context, q dbtx, e engine.Employee) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO employees (id, name, status, allocated_pct, skills)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			allocated_pct = excluded.allocated_pct,
			skills = excluded.skills`,
		e.ID, e.Name, e.Status, e.AllocatedPercentage.String(), encodeSkills(e.Skills))
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

func (s *Store) SetEmployeeStatus(ctx context.Context, id string, status engine.EmployeeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setEmployeeStatus(ctx, s.db, id, status)
}

func setEmployeeStatus(ctx context.Context, q dbtx, id string, status engine.EmployeeStatus) error {
	res, err := q.ExecContext(ctx, `UPDATE employees SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set employee status: %w", err)
	}
	return requireRow(res, "employee", id)
}

func (s *Store) SetEmployeeAllocated(ctx context.Context, id string, pct engine.Percent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setEmployeeAllocated(ctx, s.db, id, pct)
}

func setEmployeeAllocated(ctx context.Context, q dbtx, id string, pct engine.Percent) error {
	res, err := q.ExecContext(ctx, `UPDATE employees SET allocated_pct = ? WHERE id = ?`, pct.String(), id)
	if err != nil {
		return fmt.Errorf("failed to set employee allocation: %w", err)
	}
	return requireRow(res, "employee", id)
}

// =============================================================================
// PROJECTS
// =============================================================================

const projectColumns = `id, name, status, start_date, end_date, external_ref,
	required, allocated, to_be_allocated, manual_required`

func scanProject(row interface{ Scan(...any) error }) (*engine.Project, error) {
	var p engine.Project
	var start, end string
	err := row.Scan(&p.ID, &p.Name, &p.Status, &start, &end, &p.ExternalRef,
		&p.RequiredResources, &p.AllocatedResources, &p.ToBeAllocated, &p.ManualRequired)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	p.StartDate = decodeDate(start)
	p.EndDate = decodeDate(end)
	return &p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (*engine.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getProject(ctx, s.db, id)
}

func getProject(ctx context.Context, q dbtx, id string) (*engine.Project, error) {
	return scanProject(q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
}

func (s *Store) ListProjects(ctx context.Context) ([]engine.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryProjects(ctx, s.db, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
}

func (s *Store) ListOpenProjects(ctx context.Context) ([]engine.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listOpenProjects(ctx, s.db)
}

func listOpenProjects(ctx context.Context, q dbtx) ([]engine.Project, error) {
	return queryProjects(ctx, q,
		`SELECT `+projectColumns+` FROM projects WHERE status IN (?, ?) ORDER BY id`,
		engine.ProjectPlanned, engine.ProjectActive)
}

func queryProjects(ctx context.Context, q dbtx, query string, args ...any) ([]engine.Project, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []engine.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) SaveProject(ctx context.Context, p engine.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveProject(ctx, s.db, p)
}

func saveProject(ctx context.Context, q dbtx, p engine.Project) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO projects (id, name, status, start_date, end_date, external_ref,
			required, allocated, to_be_allocated, manual_required)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			external_ref = excluded.external_ref,
			required = excluded.required,
			allocated = excluded.allocated,
			to_be_allocated = excluded.to_be_allocated,
			manual_required = excluded.manual_required`,
		p.ID, p.Name, p.Status, encodeDate(p.StartDate), encodeDate(p.EndDate),
		p.ExternalRef, p.RequiredResources, p.AllocatedResources, p.ToBeAllocated, p.ManualRequired)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (s *Store) SetProjectStatus(ctx context.Context, id string, status engine.ProjectStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setProjectStatus(ctx, s.db, id, status)
}

func setProjectStatus(ctx context.Context, q dbtx, id string, status engine.ProjectStatus) error {
	res, err := q.ExecContext(ctx, `UPDATE projects SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set project status: %w", err)
	}
	return requireRow(res, "project", id)
}

func (s *Store) SetProjectCounts(ctx context.Context, id string, allocated, toBeAllocated int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setProjectCounts(ctx, s.db, id, allocated, toBeAllocated)
}

func setProjectCounts(ctx context.Context, q dbtx, id string, allocated, toBeAllocated int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE projects SET allocated = ?, to_be_allocated = ? WHERE id = ?`,
		allocated, toBeAllocated, id)
	if err != nil {
		return fmt.Errorf("failed to set project counts: %w", err)
	}
	return requireRow(res, "project", id)
}

func (s *Store) SetProjectRequired(ctx context.Context, id string, required, toBeAllocated int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setProjectRequired(ctx, s.db, id, required, toBeAllocated)
}

func setProjectRequired(ctx context.Context, q dbtx, id string, required, toBeAllocated int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE projects SET required = ?, to_be_allocated = ? WHERE id = ?`,
		required, toBeAllocated, id)
	if err != nil {
		return fmt.Errorf("failed to set project required resources: %w", err)
	}
	return requireRow(res, "project", id)
}

// =============================================================================
// DEMANDS
// =============================================================================

func (s *Store) GetDemand(ctx context.Context, id string) (*engine.Demand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getDemand(ctx, s.db, id)
}

func getDemand(ctx context.Context, q dbtx, id string) (*engine.Demand, error) {
	var d engine.Demand
	err := q.QueryRowContext(ctx,
		`SELECT id, project_id, skill, quantity FROM demands WHERE id = ?`, id).
		Scan(&d.ID, &d.ProjectID, &d.Skill, &d.Quantity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan demand: %w", err)
	}
	return &d, nil
}

func (s *Store) ListDemandsByProject(ctx context.Context, projectID string) ([]engine.Demand, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listDemandsByProject(ctx, s.db, projectID)
}

func listDemandsByProject(ctx context.Context, q dbtx, projectID string) ([]engine.Demand, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, project_id, skill, quantity FROM demands WHERE project_id = ? ORDER BY id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query demands: %w", err)
	}
	defer rows.Close()

	var out []engine.Demand
	for rows.Next() {
		var d engine.Demand
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.Skill, &d.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan demand: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) SaveDemand(ctx context.Context, d engine.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveDemand(ctx, s.db, d)
}

func saveDemand(ctx context.Context, q dbtx, d engine.Demand) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO demands (id, project_id, skill, quantity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			skill = excluded.skill,
			quantity = excluded.quantity`,
		d.ID, d.ProjectID, d.Skill, d.Quantity)
	if err != nil {
		return fmt.Errorf("failed to save demand: %w", err)
	}
	return nil
}

func (s *Store) DeleteDemand(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteDemand(ctx, s.db, id)
}

func deleteDemand(ctx context.Context, q dbtx, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM demands WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete demand: %w", err)
	}
	return nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

const allocationColumns = `id, employee_id, project_id, percentage, status, start_date, end_date`

func scanAllocation(row interface{ Scan(...any) error }) (*engine.Allocation, error) {
	var a engine.Allocation
	var pct, start, end string
	err := row.Scan(&a.ID, &a.EmployeeID, &a.ProjectID, &pct, &a.Status, &start, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocation: %w", err)
	}
	a.Percentage = engine.PercentFromString(pct)
	a.StartDate = decodeDate(start)
	a.EndDate = decodeDate(end)
	return &a, nil
}

func (s *Store) GetAllocation(ctx context.Context, id string) (*engine.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getAllocation(ctx, s.db, id)
}

func getAllocation(ctx context.Context, q dbtx, id string) (*engine.Allocation, error) {
	return scanAllocation(q.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE id = ?`, id))
}

func (s *Store) ListAllocationsByEmployee(ctx context.Context, employeeID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAllocationsByEmployee(ctx, s.db, employeeID, status)
}

func listAllocationsByEmployee(ctx context.Context, q dbtx, employeeID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	if status == "" {
		return queryAllocations(ctx, q,
			`SELECT `+allocationColumns+` FROM allocations WHERE employee_id = ? ORDER BY id`, employeeID)
	}
	return queryAllocations(ctx, q,
		`SELECT `+allocationColumns+` FROM allocations WHERE employee_id = ? AND status = ? ORDER BY id`,
		employeeID, status)
}

func (s *Store) ListAllocationsByProject(ctx context.Context, projectID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listAllocationsByProject(ctx, s.db, projectID, status)
}

func listAllocationsByProject(ctx context.Context, q dbtx, projectID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	if status == "" {
		return queryAllocations(ctx, q,
			`SELECT `+allocationColumns+` FROM allocations WHERE project_id = ? ORDER BY id`, projectID)
	}
	return queryAllocations(ctx, q,
		`SELECT `+allocationColumns+` FROM allocations WHERE project_id = ? AND status = ? ORDER BY id`,
		projectID, status)
}

func (s *Store) ListActiveAllocations(ctx context.Context) ([]engine.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listActiveAllocations(ctx, s.db)
}

func listActiveAllocations(ctx context.Context, q dbtx) ([]engine.Allocation, error) {
	return queryAllocations(ctx, q,
		`SELECT `+allocationColumns+` FROM allocations WHERE status = ? ORDER BY id`,
		engine.AllocationActive)
}

func queryAllocations(ctx context.Context, q dbtx, query string, args ...any) ([]engine.Allocation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var out []engine.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) SaveAllocation(ctx context.Context, a engine.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAllocation(ctx, s.db, a)
}

func saveAllocation(ctx context.Context, q dbtx, a engine.Allocation) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO allocations (id, employee_id, project_id, percentage, status, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_id = excluded.employee_id,
			project_id = excluded.project_id,
			percentage = excluded.percentage,
			status = excluded.status,
			start_date = excluded.start_date,
			end_date = excluded.end_date`,
		a.ID, a.EmployeeID, a.ProjectID, a.Percentage.String(), a.Status,
		encodeDate(a.StartDate), encodeDate(a.EndDate))
	if err != nil {
		return fmt.Errorf("failed to save allocation: %w", err)
	}
	return nil
}

func (s *Store) DeleteAllocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteAllocation(ctx, s.db, id)
}

func deleteAllocation(ctx context.Context, q dbtx, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM allocations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	return nil
}

func (s *Store) SetAllocationStatus(ctx context.Context, id string, status engine.AllocationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setAllocationStatus(ctx, s.db, id, status)
}

func setAllocationStatus(ctx context.Context, q dbtx, id string, status engine.AllocationStatus) error {
	res, err := q.ExecContext(ctx, `UPDATE allocations SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set allocation status: %w", err)
	}
	return requireRow(res, "allocation", id)
}

// =============================================================================
// RESET
// =============================================================================

// Reset clears all data. Demo scenario loading only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resetAll(ctx, s.db)
}

func resetAll(ctx context.Context, q dbtx) error {
	for _, table := range []string{"allocations", "demands", "projects", "employees"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The transaction-scoped
// store runs on the sql.Tx directly; the outer write lock is held throughout,
// so fn must not call back into the parent store.
func (s *Store) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transaction-scoped Store handed to WithTx callbacks.
// No locking: the parent holds the write lock for the transaction's lifetime.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetEmployee(ctx context.Context, id string) (*engine.Employee, error) {
	return getEmployee(ctx, ts.tx, id)
}

func (ts *txStore) ListEmployees(ctx context.Context) ([]engine.Employee, error) {
	return listEmployees(ctx, ts.tx)
}

func (ts *txStore) SaveEmployee(ctx context.Context, e engine.Employee) error {
	return saveEmployee(ctx, ts.tx, e)
}

func (ts *txStore) SetEmployeeStatus(ctx context.Context, id string, status engine.EmployeeStatus) error {
	return setEmployeeStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) SetEmployeeAllocated(ctx context.Context, id string, pct engine.Percent) error {
	return setEmployeeAllocated(ctx, ts.tx, id, pct)
}

func (ts *txStore) GetProject(ctx context.Context, id string) (*engine.Project, error) {
	return getProject(ctx, ts.tx, id)
}

func (ts *txStore) ListProjects(ctx context.Context) ([]engine.Project, error) {
	return queryProjects(ctx, ts.tx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
}

func (ts *txStore) ListOpenProjects(ctx context.Context) ([]engine.Project, error) {
	return listOpenProjects(ctx, ts.tx)
}

func (ts *txStore) SaveProject(ctx context.Context, p engine.Project) error {
	return saveProject(ctx, ts.tx, p)
}

func (ts *txStore) SetProjectStatus(ctx context.Context, id string, status engine.ProjectStatus) error {
	return setProjectStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) SetProjectCounts(ctx context.Context, id string, allocated, toBeAllocated int) error {
	return setProjectCounts(ctx, ts.tx, id, allocated, toBeAllocated)
}

func (ts *txStore) SetProjectRequired(ctx context.Context, id string, required, toBeAllocated int) error {
	return setProjectRequired(ctx, ts.tx, id, required, toBeAllocated)
}

func (ts *txStore) GetDemand(ctx context.Context, id string) (*engine.Demand, error) {
	return getDemand(ctx, ts.tx, id)
}

func (ts *txStore) ListDemandsByProject(ctx context.Context, projectID string) ([]engine.Demand, error) {
	return listDemandsByProject(ctx, ts.tx, projectID)
}

func (ts *txStore) SaveDemand(ctx context.Context, d engine.Demand) error {
	return saveDemand(ctx, ts.tx, d)
}

func (ts *txStore) DeleteDemand(ctx context.Context, id string) error {
	return deleteDemand(ctx, ts.tx, id)
}

func (ts *txStore) GetAllocation(ctx context.Context, id string) (*engine.Allocation, error) {
	return getAllocation(ctx, ts.tx, id)
}

func (ts *txStore) ListAllocationsByEmployee(ctx context.Context, employeeID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	return listAllocationsByEmployee(ctx, ts.tx, employeeID, status)
}

func (ts *txStore) ListAllocationsByProject(ctx context.Context, projectID string, status engine.AllocationStatus) ([]engine.Allocation, error) {
	return listAllocationsByProject(ctx, ts.tx, projectID, status)
}

func (ts *txStore) ListActiveAllocations(ctx context.Context) ([]engine.Allocation, error) {
	return listActiveAllocations(ctx, ts.tx)
}

func (ts *txStore) SaveAllocation(ctx context.Context, a engine.Allocation) error {
	return saveAllocation(ctx, ts.tx, a)
}

func (ts *txStore) DeleteAllocation(ctx context.Context, id string) error {
	return deleteAllocation(ctx, ts.tx, id)
}

func (ts *txStore) SetAllocationStatus(ctx context.Context, id string, status engine.AllocationStatus) error {
	return setAllocationStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) Reset(ctx context.Context) error {
	return resetAll(ctx, ts.tx)
}
