package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// restPageSize stays at or below PostgREST's usual max-rows setting.
const restPageSize = 1000

// restProvider is implemented by providers that can also reach the database through the
// Supabase REST API.
type restProvider interface {
	SDK() *supabase.Client
}

type seenDateRow struct {
	DateKey string `json:"date_key"`
}

// restCheck verifies that seen_dates is reachable. Tables cannot be created over REST.
func restCheck(ctx context.Context, sdk *supabase.Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := sdk.From(seenDatesTable).Select("date_key", "", false).Limit(1, "").Execute(); err != nil {
		return fmt.Errorf("seen_dates is not reachable over the Supabase API (create it with %q): %w", createSeenDatesSQL, err)
	}
	return nil
}

func restLoad(ctx context.Context, sdk *supabase.Client) ([]string, error) {
	var keys []string
	for from := 0; ; from += restPageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, _, err := sdk.From(seenDatesTable).
			Select("date_key", "", false).
			Order("date_key", nil).
			Range(from, from+restPageSize-1, "").
			Execute()
		if err != nil {
			return nil, fmt.Errorf("select seen_dates: %w", err)
		}

		var rows []seenDateRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode seen_dates: %w", err)
		}
		for _, r := range rows {
			keys = append(keys, r.DateKey)
		}
		if len(rows) < restPageSize {
			return keys, nil
		}
	}
}

func restAppend(ctx context.Context, sdk *supabase.Client, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := sdk.From(seenDatesTable).
		Upsert(seenDateRow{DateKey: key}, "date_key", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("upsert seen_dates: %w", err)
	}
	return nil
}
