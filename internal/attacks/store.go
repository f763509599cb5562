package attacks

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Store persists attack events and their action logs.
type Store interface {
	Insert(ctx context.Context, e *AttackEvent) error
	Get(ctx context.Context, id int64) (*AttackEvent, error)
	List(ctx context.Context, f Filter) ([]AttackEvent, int, error)
	// Update applies c and appends a as one unit: either both are stored
	// or neither is.
	Update(ctx context.Context, id int64, c Changes, a *ActionLog) (*AttackEvent, error)
	AppendAction(ctx context.Context, a *ActionLog) error
	Stats(ctx context.Context) (*Stats, error)
	Resequence(ctx context.Context, dryRun bool) (*ResequenceResult, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, event_id, ts, predicted_label, confidence, risk_level,
	src_ip, dst_ip, dst_port, protocol, flow, status, assigned_to, analyst_notes, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*AttackEvent, error) {
	var (
		e        AttackEvent
		flowJSON []byte
		assigned sql.NullInt64
		port     sql.NullInt64
		proto    sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.EventID, &e.Timestamp, &e.PredictedLabel, &e.Confidence, &e.RiskLevel,
		&e.SrcIP, &e.DstIP, &port, &proto, &flowJSON, &e.Status, &assigned, &e.AnalystNotes, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.DstPort = int(port.Int64)
	e.Protocol = int(proto.Int64)
	if assigned.Valid {
		id := assigned.Int64
		e.AssignedToID = &id
	}
	if len(flowJSON) > 0 {
		if err := json.Unmarshal(flowJSON, &e.Flow); err != nil {
			return nil, err
		}
	}
	e.decorate()
	return &e, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e *AttackEvent) error {
	if e.EventID <= 0 {
		return invalid("eventId", "must be allocated before insert")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = StatusNew
	}
	if e.Flow == nil {
		e.Flow = map[string]float64{}
	}
	flowJSON, err := json.Marshal(e.Flow)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO attack_events
		(event_id, ts, predicted_label, confidence, risk_level, src_ip, dst_ip, dst_port, protocol,
		 flow, status, analyst_notes, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, updated_at
	`
	row := s.db.QueryRowContext(ctx, q,
		e.EventID,
		e.Timestamp,
		e.PredictedLabel,
		e.Confidence,
		e.RiskLevel,
		e.SrcIP,
		e.DstIP,
		e.DstPort,
		e.Protocol,
		string(flowJSON),
		e.Status,
		e.AnalystNotes,
		time.Now().UTC(),
	)
	if err := row.Scan(&e.ID, &e.UpdatedAt); err != nil {
		return classify("insert attack", err)
	}
	e.decorate()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*AttackEvent, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM attack_events WHERE id = $1`, id))
	if err != nil {
		return nil, classify("get attack", err)
	}
	const q = `
		SELECT id, attack_id, user_id, action_type, details, created_at
		FROM action_logs WHERE attack_id = $1 ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, classify("list actions", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a ActionLog
		var details []byte
		if err := rows.Scan(&a.ID, &a.AttackID, &a.UserID, &a.ActionType, &details, &a.CreatedAt); err != nil {
			return nil, classify("scan action", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, err
			}
		}
		e.Actions = append(e.Actions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list actions", err)
	}
	return e, nil
}

// whereClause renders the filter as SQL. The search term matches IPs and
// notes as a case-insensitive substring; an integer term also matches the
// destination port and eventId exactly.
func whereClause(f Filter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	argIdx := 1

	if f.Status != "" {
		clauses = append(clauses, "status = $"+itoa(argIdx))
		args = append(args, string(f.Status))
		argIdx++
	}
	if f.Risk != "" {
		clauses = append(clauses, "risk_level = $"+itoa(argIdx))
		args = append(args, string(f.Risk))
		argIdx++
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		p := "$" + itoa(argIdx)
		or := []string{"src_ip ILIKE " + p, "dst_ip ILIKE " + p, "analyst_notes ILIKE " + p}
		args = append(args, "%"+escapeLike(term)+"%")
		argIdx++
		if n, ok := searchNumber(term); ok {
			p := "$" + itoa(argIdx)
			or = append(or, "dst_port = "+p, "event_id = "+p)
			args = append(args, n)
			argIdx++
		}
		clauses = append(clauses, "("+strings.Join(or, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]AttackEvent, int, error) {
	f = f.Normalize()
	where, args := whereClause(f)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM attack_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, classify("count attacks", err)
	}

	query := "SELECT " + eventColumns + " FROM attack_events WHERE " + where +
		" ORDER BY ts DESC, event_id DESC LIMIT " + itoa(f.PageSize) + " OFFSET " + itoa(f.Offset())
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, classify("list attacks", err)
	}
	defer rows.Close()

	result := []AttackEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, classify("scan attack", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, classify("list attacks", err)
	}
	return result, total, nil
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) Update(ctx context.Context, id int64, c Changes, a *ActionLog) (*AttackEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin update", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status, notes sql.NullString
	var assigned sql.NullInt64
	if c.Status != nil {
		status = sql.NullString{String: string(*c.Status), Valid: true}
	}
	if c.AnalystNotes != nil {
		notes = sql.NullString{String: *c.AnalystNotes, Valid: true}
	}
	if c.AssignedTo != nil {
		assigned = sql.NullInt64{Int64: *c.AssignedTo, Valid: true}
	}
	q := `
		UPDATE attack_events SET
			status = COALESCE($1, status),
			assigned_to = COALESCE($2, assigned_to),
			analyst_notes = COALESCE($3, analyst_notes),
			updated_at = $4
		WHERE id = $5
		RETURNING ` + eventColumns
	e, err := scanEvent(tx.QueryRowContext(ctx, q, status, assigned, notes, time.Now().UTC(), id))
	if err != nil {
		return nil, classify("update attack", err)
	}
	a.AttackID = id
	if err := insertAction(ctx, tx, a); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit update", err)
	}
	return e, nil
}

func (s *PostgresStore) AppendAction(ctx context.Context, a *ActionLog) error {
	return insertAction(ctx, s.db, a)
}

func insertAction(ctx context.Context, q queryRower, a *ActionLog) error {
	if a.Details == nil {
		a.Details = map[string]any{}
	}
	details, err := json.Marshal(a.Details)
	if err != nil {
		return err
	}
	const stmt = `
		INSERT INTO action_logs (attack_id, user_id, action_type, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err = q.QueryRowContext(ctx, stmt, a.AttackID, a.UserID, a.ActionType, string(details), time.Now().UTC()).
		Scan(&a.ID, &a.CreatedAt)
	return classify("append action", err)
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, risk_level, COUNT(*) FROM attack_events GROUP BY status, risk_level`)
	if err != nil {
		return nil, classify("attack stats", err)
	}
	defer rows.Close()
	st := newStats()
	for rows.Next() {
		var status Status
		var risk RiskLevel
		var n int
		if err := rows.Scan(&status, &risk, &n); err != nil {
			return nil, classify("attack stats", err)
		}
		st.Total += n
		st.ByStatus[status] += n
		st.ByRisk[risk] += n
	}
	return st, classify("attack stats", rows.Err())
}

// Resequence renumbers every event by ascending timestamp to 1..N and moves
// the sequence counter to N. It holds the counter row lock for the whole pass
// so no allocation interleaves with it.
func (s *PostgresStore) Resequence(ctx context.Context, dryRun bool) (*ResequenceResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin resequence", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT value FROM event_sequences WHERE name = $1 FOR UPDATE`, sequenceName); err != nil {
		return nil, classify("lock sequence", err)
	}
	if _, err := tx.ExecContext(ctx, `LOCK TABLE attack_events IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return nil, classify("lock attacks", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, event_id FROM attack_events ORDER BY ts, id`)
	if err != nil {
		return nil, classify("scan sequence", err)
	}
	res := &ResequenceResult{DryRun: dryRun, Changes: []Renumber{}}
	for rows.Next() {
		var id, eventID int64
		if err := rows.Scan(&id, &eventID); err != nil {
			rows.Close()
			return nil, classify("scan sequence", err)
		}
		res.Total++
		if want := int64(res.Total); eventID != want {
			res.Changes = append(res.Changes, Renumber{ID: id, From: eventID, To: want})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, classify("scan sequence", err)
	}
	if dryRun {
		return res, nil
	}

	if _, err := tx.ExecContext(ctx, `SET CONSTRAINTS `+eventIDConstraint+` DEFERRED`); err != nil {
		return nil, classify("defer constraint", err)
	}
	const renumber = `
		WITH ranked AS (
			SELECT id, ROW_NUMBER() OVER (ORDER BY ts, id) AS rn FROM attack_events
		)
		UPDATE attack_events a SET event_id = ranked.rn
		FROM ranked WHERE a.id = ranked.id AND a.event_id <> ranked.rn
	`
	if _, err := tx.ExecContext(ctx, renumber); err != nil {
		return nil, classify("renumber attacks", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE event_sequences SET value = $1 WHERE name = $2`, res.Total, sequenceName); err != nil {
		return nil, classify("reset sequence", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit resequence", err)
	}
	return res, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// searchNumber reports whether the whole search term is an integer.
func searchNumber(term string) (int64, bool) {
	n, err := strconv.ParseInt(term, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
