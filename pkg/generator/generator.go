// Package generator writes synthetic department sales CSV files in the
// shape the processor aggregates.
package generator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"
)

const (
	Header = "Department Name,Date,Number of Sales"

	DefaultRecords     = 1_000_000
	DefaultDepartments = 100

	minSales  = 10
	maxSales  = 500
	flushRows = 1_000_000
)

type Config struct {
	Records     int
	Departments int
	// StartDate is the first possible date; rows fall within Days days of it.
	StartDate time.Time
	Days      int
	// Seed makes the output reproducible. Zero picks a random seed.
	Seed uint64
	// Progress, when set, is called with the number of rows written so far.
	Progress func(rows int)
}

func DefaultConfig() Config {
	return Config{
		Records:     DefaultRecords,
		Departments: DefaultDepartments,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Days:        365,
	}
}

func (c Config) validate() error {
	if c.Records < 0 {
		return fmt.Errorf("records must not be negative, got %d", c.Records)
	}
	if c.Departments <= 0 {
		return errors.New("at least one department is required")
	}
	if c.Days <= 0 {
		return errors.New("days must be positive")
	}
	return nil
}

// DepartmentName is the name of the i-th department, counting from zero.
func DepartmentName(i int) string {
	return fmt.Sprintf("Department %d", i+1)
}

// Generate writes the header and cfg.Records rows to w and returns the number
// of data rows written.
func Generate(w io.Writer, cfg Config) (int, error) {
	if err := cfg.validate(); err != nil {
		return 0, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	departments := make([]string, cfg.Departments)
	for i := range departments {
		departments[i] = DepartmentName(i)
	}

	bw := bufio.NewWriterSize(w, 64*1024)
	if _, err := fmt.Fprintln(bw, Header); err != nil {
		return 0, err
	}
	for i := 0; i < cfg.Records; i++ {
		dept := departments[rng.IntN(len(departments))]
		date := cfg.StartDate.AddDate(0, 0, rng.IntN(cfg.Days))
		sales := rng.IntN(maxSales-minSales+1) + minSales
		if _, err := fmt.Fprintf(bw, "%s,%s,%d\n", dept, date.Format(time.DateOnly), sales); err != nil {
			return i, err
		}
		if (i+1)%flushRows == 0 {
			if err := bw.Flush(); err != nil {
				return i + 1, err
			}
			if cfg.Progress != nil {
				cfg.Progress(i + 1)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return cfg.Records, err
	}
	if cfg.Progress != nil {
		cfg.Progress(cfg.Records)
	}
	return cfg.Records, nil
}
