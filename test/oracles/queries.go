package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists queries that must return no rows while the registry is consistent.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_role",
			SQL:  `SELECT id FROM accounts WHERE is_doctor AND is_patient`,
		},
		{
			Name: "O2_profile_flag",
			SQL: `SELECT p.id FROM patient_profiles p JOIN accounts a ON a.id = p.account_id WHERE NOT a.is_patient
                  UNION ALL
                  SELECT d.id FROM doctor_profiles d JOIN accounts a ON a.id = d.account_id WHERE NOT a.is_doctor`,
		},
		{
			Name: "O3_one_profile_per_account",
			SQL: `SELECT account_id FROM (
                      SELECT account_id FROM patient_profiles
                      UNION ALL
                      SELECT account_id FROM doctor_profiles) profiles
                  GROUP BY account_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_unique_pair",
			SQL: `SELECT patient_id, doctor_id, COUNT(*) FROM assignments
                  GROUP BY patient_id, doctor_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O5_unique_license",
			SQL:  `SELECT license_number FROM doctor_profiles GROUP BY license_number HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_created_event_per_row",
			SQL: `SELECT m.id FROM assignments m
                  WHERE NOT EXISTS (
                      SELECT 1 FROM outbox o
                      WHERE o.topic = 'assignment.created' AND o.payload->>'assignment_id' = m.id::text)
                  UNION ALL
                  SELECT p.id FROM patient_profiles p
                  WHERE NOT EXISTS (
                      SELECT 1 FROM outbox o
                      WHERE o.topic = 'patient.created' AND o.payload->>'patient_id' = p.id::text)`,
		},
		{
			Name: "O7_outbox_drained",
			SQL: `SELECT id FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '1 minute'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
