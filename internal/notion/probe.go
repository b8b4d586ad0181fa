package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"notionics/internal/model"
)

const probePageSize = 5

type probeDate struct {
	Start    string `json:"start"`
	End      string `json:"end,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
}

// Probe fetches a small first page and prints what the mapper will see:
// how many records came back, the property names of the first record and
// the raw value of each of its date properties. It is a setup aid for
// checking the database id and property names.
func Probe(ctx context.Context, src Source, databaseID string, w io.Writer) error {
	fmt.Fprintf(w, "database: %s\n", databaseID)

	resp, err := src.Query(ctx, QueryRequest{DatabaseID: databaseID, PageSize: probePageSize})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "records in first page: %d\n", len(resp.Results))

	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "no records returned; check the database id and that the integration is connected to it")
		return nil
	}

	first := resp.Results[0]
	names, err := json.Marshal(first.Properties.Names())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "property names of first record: %s\n", names)

	dates := make(map[string]*probeDate)
	for _, p := range first.Properties {
		if p.Value.Kind != model.KindDate {
			continue
		}
		if p.Value.Date == nil {
			dates[p.Name] = nil
			continue
		}
		dates[p.Name] = &probeDate{
			Start:    p.Value.Date.Start,
			End:      p.Value.Date.End,
			TimeZone: p.Value.Date.TimeZone,
		}
	}
	pretty, err := json.MarshalIndent(dates, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "date properties: %s\n", pretty)
	return nil
}
