// Package sis imports the school roster from the district's legacy
// Student Information System (an MSSQL database) into the local
// school directory.
package sis

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/edureach/fieldops/internal/school"
	"github.com/edureach/fieldops/internal/shared/config"
	"github.com/edureach/fieldops/internal/shared/metrics"
)

// SchoolWriter is the slice of the school repository the importer needs.
type SchoolWriter interface {
	Upsert(ctx context.Context, s *school.School) error
}

// Adapter polls the district SIS and upserts school records
type Adapter struct {
	db     *sql.DB
	cfg    config.SISConfig
	writer SchoolWriter

	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// New creates a new SIS adapter
func New(cfg config.SISConfig, writer SchoolWriter) *Adapter {
	return &Adapter{cfg: cfg, writer: writer}
}

// Start opens the database connection and starts the poll loop
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.cfg.Host, a.cfg.Port, a.cfg.Database, a.cfg.User, a.cfg.Password,
	)
	if a.cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open SIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping SIS database: %w", err)
	}

	a.db = db
	a.running = true

	pollCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	return nil
}

// Stop stops the adapter and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks SIS database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}

	return a.db.PingContext(ctx)
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	// Import once at startup, then on the interval.
	if err := a.importSchools(ctx); err != nil {
		fmt.Printf("Warning: SIS import failed: %v\n", err)
	}

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.importSchools(ctx); err != nil {
				fmt.Printf("Warning: SIS import failed: %v\n", err)
			}
		}
	}
}

// importSchools reads the full roster and upserts it
func (a *Adapter) importSchools(ctx context.Context) error {
	query := fmt.Sprintf(
		`SELECT SchoolCode, SchoolName, Region FROM %s WHERE Active = 1`,
		a.cfg.SchoolTable,
	)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query SIS schools: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var code, name string
		var region sql.NullString
		if err := rows.Scan(&code, &name, &region); err != nil {
			return fmt.Errorf("failed to scan SIS school row: %w", err)
		}

		s := &school.School{Code: code, Name: name}
		if region.Valid && region.String != "" {
			r := region.String
			s.Region = &r
		}

		if err := a.writer.Upsert(ctx, s); err != nil {
			return fmt.Errorf("failed to upsert school %s: %w", code, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate SIS school rows: %w", err)
	}

	a.mu.Lock()
	a.lastPoll = time.Now()
	a.mu.Unlock()

	metrics.RecordSISImport(count)
	return nil
}
