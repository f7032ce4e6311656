package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Mirror is the system's persistence layer: three in-memory ordered
// sequences (jobs, users, contests), each behind its own exclusive guard, and
// a relational store that every mutation is written through to. Handlers and
// the judging worker pool receive a *Mirror by dependency injection rather
// than reaching for a package-level global.
type Mirror struct {
	pool *pgxpool.Pool

	jobsMu sync.RWMutex
	jobs   []Job

	usersMu sync.RWMutex
	users   []User

	contestsMu sync.RWMutex
	contests   []Contest
}

// NewMirror wraps a pgx pool; call Boot before using the mirror.
func NewMirror(pool *pgxpool.Pool) *Mirror {
	return &Mirror{pool: pool}
}

// Boot drops tables (if flush is set), creates them if absent, and reloads
// all three sequences from the store. A parse failure of a serialized field
// is fatal: the store is considered corrupt.
func (m *Mirror) Boot(ctx context.Context, flush bool) error {
	if flush {
		if err := m.dropAllTables(ctx); err != nil {
			return fmt.Errorf("dropping tables: %w", err)
		}
	}
	if err := m.createTables(ctx); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	if err := m.readJobs(ctx); err != nil {
		return fmt.Errorf("reading jobs: %w", err)
	}
	if err := m.readContests(ctx); err != nil {
		return fmt.Errorf("reading contests: %w", err)
	}
	if err := m.readUsers(ctx); err != nil {
		return fmt.Errorf("reading users: %w", err)
	}
	return nil
}

func (m *Mirror) dropAllTables(ctx context.Context) error {
	rows, err := m.pool.Query(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public' AND tablename NOT LIKE 'pg_%'`)
	if err != nil {
		return err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		if _, err := m.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, name)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY,
			created_time TEXT NOT NULL,
			updated_time TEXT NOT NULL,
			submission TEXT NOT NULL,
			state TEXT NOT NULL,
			result TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			cases TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contests (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			from_time TEXT NOT NULL,
			to_time TEXT NOT NULL,
			problem_ids TEXT NOT NULL,
			user_ids TEXT NOT NULL,
			submission_limit INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := m.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mirror) readJobs(ctx context.Context) error {
	rows, err := m.pool.Query(ctx, `SELECT id, created_time, updated_time, submission, state, result, score, cases FROM jobs ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var submissionText, casesText string
		if err := rows.Scan(&j.ID, &j.CreatedTime, &j.UpdatedTime, &submissionText, &j.State, &j.Result, &j.Score, &casesText); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(submissionText), &j.Submission); err != nil {
			return fmt.Errorf("corrupt submission for job %d: %w", j.ID, err)
		}
		if err := json.Unmarshal([]byte(casesText), &j.Cases); err != nil {
			return fmt.Errorf("corrupt cases for job %d: %w", j.ID, err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	m.jobsMu.Lock()
	m.jobs = jobs
	m.jobsMu.Unlock()
	return nil
}

func (m *Mirror) readContests(ctx context.Context) error {
	rows, err := m.pool.Query(ctx, `SELECT id, name, from_time, to_time, problem_ids, user_ids, submission_limit FROM contests ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	var contests []Contest
	for rows.Next() {
		var c Contest
		var problemIDsText, userIDsText string
		if err := rows.Scan(&c.ID, &c.Name, &c.From, &c.To, &problemIDsText, &userIDsText, &c.SubmissionLimit); err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(problemIDsText), &c.ProblemIDs); err != nil {
			return fmt.Errorf("corrupt problem_ids for contest %d: %w", c.ID, err)
		}
		if err := json.Unmarshal([]byte(userIDsText), &c.UserIDs); err != nil {
			return fmt.Errorf("corrupt user_ids for contest %d: %w", c.ID, err)
		}
		contests = append(contests, c)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	m.contestsMu.Lock()
	m.contests = contests
	m.contestsMu.Unlock()
	return nil
}

func (m *Mirror) readUsers(ctx context.Context) error {
	rows, err := m.pool.Query(ctx, `SELECT id, name FROM users ORDER BY id`)
	if err != nil {
		return err
	}
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			rows.Close()
			return err
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(users) == 0 {
		root := User{ID: 0, Name: "root"}
		if _, err := m.pool.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1, $2)`, root.ID, root.Name); err != nil {
			return err
		}
		users = append(users, root)
	}

	m.usersMu.Lock()
	m.users = users
	m.usersMu.Unlock()
	return nil
}

// --- jobs ---

// SnapshotJobs returns a copy of the current job sequence.
func (m *Mirror) SnapshotJobs() []Job {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	out := make([]Job, len(m.jobs))
	for i, j := range m.jobs {
		out[i] = j.Clone()
	}
	return out
}

// GetJob fetches one job by id.
func (m *Mirror) GetJob(id int) (Job, bool) {
	m.jobsMu.RLock()
	defer m.jobsMu.RUnlock()
	for _, j := range m.jobs {
		if j.ID == id {
			return j.Clone(), true
		}
	}
	return Job{}, false
}

// InsertJob appends job (taking the next monotone id internally) and writes
// through to the store. Returns the stored job with its assigned id.
func (m *Mirror) InsertJob(ctx context.Context, job Job) (Job, error) {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	nextID := 0
	for _, j := range m.jobs {
		if j.ID >= nextID {
			nextID = j.ID + 1
		}
	}
	job.ID = nextID

	submissionText, err := json.Marshal(job.Submission)
	if err != nil {
		return Job{}, err
	}
	casesText, err := json.Marshal(job.Cases)
	if err != nil {
		return Job{}, err
	}
	// The in-memory sequence is the source of truth for every read; it is
	// updated first so a write-through failure never leaves a job visible to
	// readers but absent from the sequence. The failure is still surfaced to
	// the caller — it is not rolled back.
	m.jobs = append(m.jobs, job)
	if _, err := m.pool.Exec(ctx,
		`INSERT INTO jobs (id, created_time, updated_time, submission, state, result, score, cases) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		job.ID, job.CreatedTime, job.UpdatedTime, string(submissionText), job.State, job.Result, job.Score, string(casesText),
	); err != nil {
		return job.Clone(), err
	}

	return job.Clone(), nil
}

// UpdateJob persists every mutable field of job (matched by id) and writes
// through to the store. Used by PUT (re-judge reset) and by ApplySnapshot.
func (m *Mirror) UpdateJob(ctx context.Context, job Job) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()
	return m.updateJobLocked(ctx, job)
}

func (m *Mirror) updateJobLocked(ctx context.Context, job Job) error {
	idx := -1
	for i, j := range m.jobs {
		if j.ID == job.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return NewAPIError(ErrNotFound, fmt.Sprintf("job %d not found", job.ID))
	}

	casesText, err := json.Marshal(job.Cases)
	if err != nil {
		return err
	}

	// As in InsertJob, the in-memory sequence is updated before the
	// write-through attempt: a storage failure is surfaced below but never
	// rolled back, so the mirror keeps reflecting the newest snapshot.
	m.jobs[idx] = job
	if _, err := m.pool.Exec(ctx,
		`UPDATE jobs SET updated_time=$1, state=$2, result=$3, score=$4, cases=$5 WHERE id=$6`,
		job.UpdatedTime, job.State, job.Result, job.Score, string(casesText), job.ID,
	); err != nil {
		return err
	}

	return nil
}

// DeleteJob removes a job by id; callers must already have checked it is
// legal to delete (only while Queueing).
func (m *Mirror) DeleteJob(ctx context.Context, id int) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	idx := -1
	for i, j := range m.jobs {
		if j.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return NewAPIError(ErrNotFound, fmt.Sprintf("job %d not found", id))
	}
	if _, err := m.pool.Exec(ctx, `DELETE FROM jobs WHERE id=$1`, id); err != nil {
		return err
	}
	m.jobs = append(m.jobs[:idx], m.jobs[idx+1:]...)
	return nil
}

// ClaimQueueing scans the job sequence once and returns a snapshot of every
// Queueing job not yet claimed, marking each claimed under the same lock
// acquisition: this closes the producer double-spawn hazard without
// introducing a new persisted state.
func (m *Mirror) ClaimQueueing() []Job {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	var claimed []Job
	for i := range m.jobs {
		if m.jobs[i].State == StateQueueing && !m.jobs[i].claimed {
			m.jobs[i].claimed = true
			claimed = append(claimed, m.jobs[i].Clone())
		}
	}
	return claimed
}

// ApplySnapshot is the consumer's single write path: it overwrites the job
// at its index with the incoming snapshot and writes through to the store,
// in arrival order.
func (m *Mirror) ApplySnapshot(ctx context.Context, snapshot Job) error {
	m.jobsMu.Lock()
	defer m.jobsMu.Unlock()

	for i, j := range m.jobs {
		if j.ID == snapshot.ID {
			snapshot.claimed = j.claimed
			break
		}
	}
	return m.updateJobLocked(ctx, snapshot)
}

// --- users ---

// ListUsers returns a copy of the current user sequence.
func (m *Mirror) ListUsers() []User {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	return append([]User(nil), m.users...)
}

// GetUser fetches one user by id.
func (m *Mirror) GetUser(id int) (User, bool) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// FindUserByName looks up a user by exact name match.
func (m *Mirror) FindUserByName(name string) (User, bool) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	for _, u := range m.users {
		if u.Name == name {
			return u, true
		}
	}
	return User{}, false
}

// UpsertUser creates a new user (id == nil) or renames an existing one
// (id != nil), the behavior backing POST /users.
func (m *Mirror) UpsertUser(ctx context.Context, id *int, name string) (User, error) {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()

	for _, u := range m.users {
		if u.Name == name && (id == nil || u.ID != *id) {
			return User{}, NewAPIError(ErrInvalidArgument, fmt.Sprintf("user name %q already exists", name))
		}
	}

	if id != nil {
		idx := -1
		for i, u := range m.users {
			if u.ID == *id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return User{}, NewAPIError(ErrNotFound, fmt.Sprintf("user %d not found", *id))
		}
		if _, err := m.pool.Exec(ctx, `UPDATE users SET name=$1 WHERE id=$2`, name, *id); err != nil {
			return User{}, err
		}
		m.users[idx].Name = name
		return m.users[idx], nil
	}

	next := User{ID: len(m.users), Name: name}
	if _, err := m.pool.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1,$2)`, next.ID, next.Name); err != nil {
		return User{}, err
	}
	m.users = append(m.users, next)
	return next, nil
}

// --- contests ---

// ListContests returns a copy of the current contest sequence.
func (m *Mirror) ListContests() []Contest {
	m.contestsMu.RLock()
	defer m.contestsMu.RUnlock()
	return append([]Contest(nil), m.contests...)
}

// GetContest fetches one contest by id; id 0 is the virtual public contest
// and is never stored, so callers must special-case it before calling this.
func (m *Mirror) GetContest(id int) (Contest, bool) {
	m.contestsMu.RLock()
	defer m.contestsMu.RUnlock()
	for _, c := range m.contests {
		if c.ID == id {
			return c, true
		}
	}
	return Contest{}, false
}

// UpsertContest replaces the contest at id (1-based, must already exist) when
// id is non-nil, or appends a new contest (next id = len+1) when id is nil,
// matching POST /contests semantics: id is never used to pick a specific new
// slot, only to address an existing one.
func (m *Mirror) UpsertContest(ctx context.Context, id *int, contest Contest) (Contest, error) {
	m.contestsMu.Lock()
	defer m.contestsMu.Unlock()

	problemIDsText, err := json.Marshal(contest.ProblemIDs)
	if err != nil {
		return Contest{}, err
	}
	userIDsText, err := json.Marshal(contest.UserIDs)
	if err != nil {
		return Contest{}, err
	}

	if id != nil {
		if *id == 0 {
			return Contest{}, NewAPIError(ErrInvalidArgument, "invalid contest id")
		}
		if *id < 1 || *id > len(m.contests) {
			return Contest{}, NewAPIError(ErrNotFound, fmt.Sprintf("contest %d not found", *id))
		}
		contest.ID = *id
		if _, err := m.pool.Exec(ctx,
			`UPDATE contests SET name=$1, from_time=$2, to_time=$3, problem_ids=$4, user_ids=$5, submission_limit=$6 WHERE id=$7`,
			contest.Name, contest.From, contest.To, string(problemIDsText), string(userIDsText), contest.SubmissionLimit, contest.ID,
		); err != nil {
			return Contest{}, err
		}
		m.contests[*id-1] = contest
		return contest, nil
	}

	contest.ID = len(m.contests) + 1
	if _, err := m.pool.Exec(ctx,
		`INSERT INTO contests (id, name, from_time, to_time, problem_ids, user_ids, submission_limit) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		contest.ID, contest.Name, contest.From, contest.To, string(problemIDsText), string(userIDsText), contest.SubmissionLimit,
	); err != nil {
		return Contest{}, err
	}
	m.contests = append(m.contests, contest)
	return contest, nil
}
