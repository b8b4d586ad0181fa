package notion

import (
	"context"
	"errors"
	"iter"

	"notionics/internal/model"
)

// Paginate yields every record of a database in source order, following
// continuation cursors until the source reports no more pages. Each call
// starts a fresh pagination.
//
// On a failed page the error is yielded once (with a zero Record) and the
// sequence ends.
func Paginate(ctx context.Context, src Source, databaseID string, pageSize int) iter.Seq2[model.Record, error] {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}
	return func(yield func(model.Record, error) bool) {
		cursor := ""
		for {
			resp, err := src.Query(ctx, QueryRequest{
				DatabaseID: databaseID,
				PageSize:   pageSize,
				Cursor:     cursor,
			})
			if err != nil {
				yield(model.Record{}, err)
				return
			}
			for _, rec := range resp.Results {
				if !yield(rec, nil) {
					return
				}
			}
			if !resp.HasMore {
				return
			}
			if resp.NextCursor == "" || resp.NextCursor == cursor {
				yield(model.Record{}, errors.New("notion: has_more set without a new cursor"))
				return
			}
			cursor = resp.NextCursor
		}
	}
}

// Collect materializes a paginated sequence, stopping at the first error.
func Collect(seq iter.Seq2[model.Record, error]) ([]model.Record, error) {
	var out []model.Record
	for rec, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
