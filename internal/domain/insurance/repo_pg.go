package insurance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccdstore/ccdstore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const policyColumns = `id, patient_id, COALESCE(payer_name, ''), COALESCE(plan_name, ''),
	COALESCE(coverage_type, ''), COALESCE(policy_type, ''), COALESCE(member_id, ''),
	COALESCE(group_number, ''), COALESCE(subscriber_id, ''), COALESCE(subscriber_name, ''),
	COALESCE(relationship, ''), COALESCE(effective_date, ''), COALESCE(expiration_date, ''),
	COALESCE(status, ''), COALESCE(payer_identifier, ''), COALESCE(source_policy_id, ''),
	COALESCE(notes, ''), data_source_id`

func scanPolicy(row pgx.Row) (*Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.PatientID, &p.PayerName, &p.PlanName,
		&p.CoverageType, &p.PolicyType, &p.MemberID,
		&p.GroupNumber, &p.SubscriberID, &p.SubscriberName,
		&p.Relationship, &p.EffectiveDate, &p.ExpirationDate,
		&p.Status, &p.PayerIdentifier, &p.SourcePolicyID,
		&p.Notes, &p.DataSourceID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) GetByNaturalKey(ctx context.Context, patientID int64, payerName, planName, memberID, groupNumber string) (*Policy, error) {
	p, err := scanPolicy(r.conn(ctx).QueryRow(ctx, `
		SELECT `+policyColumns+` FROM insurance
		WHERE patient_id = $1
		  AND COALESCE(payer_name, '') = $2
		  AND COALESCE(plan_name, '') = $3
		  AND COALESCE(member_id, '') = $4
		  AND COALESCE(group_number, '') = $5`,
		patientID, payerName, planName, memberID, groupNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *repoPG) Create(ctx context.Context, p *Policy) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO insurance (
			patient_id, payer_name, plan_name, coverage_type, policy_type,
			member_id, group_number, subscriber_id, subscriber_name, relationship,
			effective_date, expiration_date, status, payer_identifier,
			source_policy_id, notes, data_source_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`,
		p.PatientID, nullif(p.PayerName), nullif(p.PlanName), nullif(p.CoverageType), nullif(p.PolicyType),
		nullif(p.MemberID), nullif(p.GroupNumber), nullif(p.SubscriberID), nullif(p.SubscriberName), nullif(p.Relationship),
		nullif(p.EffectiveDate), nullif(p.ExpirationDate), nullif(p.Status), nullif(p.PayerIdentifier),
		nullif(p.SourcePolicyID), nullif(p.Notes), p.DataSourceID,
	).Scan(&p.ID)
}

func (r *repoPG) Update(ctx context.Context, id int64, u Updates) error {
	sets := ""
	var args []interface{}
	add := func(column string, value interface{}) {
		if sets != "" {
			sets += ", "
		}
		args = append(args, value)
		sets += fmt.Sprintf("%s = $%d", column, len(args))
	}
	for _, col := range []struct {
		name  string
		value string
	}{
		{"coverage_type", u.CoverageType},
		{"policy_type", u.PolicyType},
		{"subscriber_id", u.SubscriberID},
		{"subscriber_name", u.SubscriberName},
		{"relationship", u.Relationship},
		{"effective_date", u.EffectiveDate},
		{"expiration_date", u.ExpirationDate},
		{"status", u.Status},
		{"payer_identifier", u.PayerIdentifier},
		{"source_policy_id", u.SourcePolicyID},
		{"notes", u.Notes},
	} {
		if col.value != "" {
			add(col.name, col.value)
		}
	}
	if u.DataSourceID != nil {
		add("data_source_id", *u.DataSourceID)
	}
	if sets == "" {
		return nil
	}
	args = append(args, id)
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf("UPDATE insurance SET %s WHERE id = $%d", sets, len(args)), args...)
	return err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Policy, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+policyColumns+` FROM insurance
		WHERE patient_id = $1
		ORDER BY COALESCE(payer_name, ''), COALESCE(plan_name, ''), id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}

func nullif(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
