// Package identifier allocates sequential record numbers in NNNN/YYYY form.
// The sequence restarts at 0001 each calendar year.
package identifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"ncrtrack/internal/domain"
	"ncrtrack/internal/store"
)

var numberPattern = regexp.MustCompile(`^(\d+)/(\d{4})$`)

// Generator derives the next number by scanning existing records. It holds no
// counter of its own, so the caller must run Next under the record table's
// write lock and insert before releasing it; otherwise two creators can scan
// the same maximum and collide.
type Generator struct {
	store store.TableStore
	now   func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithNow overrides the clock. For tests.
func WithNow(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(st store.TableStore, opts ...Option) *Generator {
	g := &Generator{store: st, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next returns the next unused number for the current year.
func (g *Generator) Next(ctx context.Context) (string, error) {
	year := g.now().Year()

	rows, err := g.store.Find(ctx, domain.TableRecords, store.Filters{
		domain.FieldNumber: store.Condition{Op: "endsWith", Value: "/" + strconv.Itoa(year)},
	}, nil)
	if err != nil {
		return "", &domain.BackendError{Op: "scan record numbers", Err: err}
	}

	highest := 0
	for _, row := range rows {
		number, _ := row[domain.FieldNumber].(string)
		m := numberPattern.FindStringSubmatch(number)
		if m == nil {
			continue
		}
		y, _ := strconv.Atoi(m[2])
		if y != year {
			continue
		}
		if seq, err := strconv.Atoi(m[1]); err == nil && seq > highest {
			highest = seq
		}
	}

	return fmt.Sprintf("%04d/%d", highest+1, year), nil
}
