package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

type Stats struct {
	Driver       string
	Entries      int64
	Hits         int64
	Instructions int64
	Newest       time.Time
}

func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	s := Stats{Driver: c.dialect.name}
	var newest int64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(hits), 0), COALESCE(SUM(instructions), 0), COALESCE(MAX(created_unix), 0) FROM bies_cache").
		Scan(&s.Entries, &s.Hits, &s.Instructions, &newest)
	if err != nil {
		return Stats{}, errors.Wrap(err, "read cache stats")
	}
	if newest > 0 {
		s.Newest = time.Unix(newest, 0)
	}
	return s, nil
}

func (s Stats) String() string {
	newest := "never"
	if !s.Newest.IsZero() {
		newest = humanize.Time(s.Newest)
	}
	return fmt.Sprintf("driver: %s\nentries: %s\nhits: %s\ninstructions: %s\nlast write: %s\n",
		s.Driver, humanize.Comma(s.Entries), humanize.Comma(s.Hits), humanize.Comma(s.Instructions), newest)
}
