package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"campus/internal/config"
	"campus/internal/store"
)

// campusctl is the operator CLI: schema migrations, demo data, bootstrap
// admin.
func main() {
	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Campus platform administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(), seedCmd(), createAdminCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openDB() (*store.DB, config.App, error) {
	cfg := config.Load()
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, cfg, fmt.Errorf("connect: %w", err)
	}
	return db, cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if err := store.Migrate(ctx, db.Client, cfg.MigrationsDir); err != nil {
				return err
			}
			version, err := store.MigrationVersion(ctx, db.Client)
			if err != nil {
				return err
			}
			fmt.Printf("schema at version %d\n", version)
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			var id int64
			err = db.Client.QueryRowContext(cmd.Context(), `
				INSERT INTO users (name, email, password_hash, type, status)
				VALUES ($1, $2, $3, 'admin', 'active')
				RETURNING id
			`, name, email, string(hash)).Scan(&id)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Printf("admin %q created with id %d\n", email, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo catalog, classrooms and course data",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			return seed(cmd.Context(), db)
		},
	}
}

func seed(ctx context.Context, db *store.DB) error {
	tx, err := db.Client.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	books := []struct {
		title, author, publisher string
		year                     int
		copies                   []string
	}{
		{"The Go Programming Language", "Donovan & Kernighan", "Addison-Wesley", 2015,
			[]string{"978-0134190440", "978-0134190440"}},
		{"Structure and Interpretation of Computer Programs", "Abelson & Sussman", "MIT Press", 1996,
			[]string{"978-0262510875"}},
		{"Introduction to Algorithms", "Cormen et al.", "MIT Press", 2009,
			[]string{"978-0262033848", "978-0262033848", "978-0262033848"}},
	}
	for _, b := range books {
		var bookID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO books (title, author, publisher, published_year, total_copies, available_copies)
			VALUES ($1, $2, $3, $4, $5, $5)
			RETURNING id
		`, b.title, b.author, b.publisher, b.year, len(b.copies)).Scan(&bookID)
		if err != nil {
			return fmt.Errorf("seed book %q: %w", b.title, err)
		}
		for _, isbn := range b.copies {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO book_copies (book_id, isbn, status) VALUES ($1, $2, 'available')
			`, bookID, isbn); err != nil {
				return fmt.Errorf("seed copy: %w", err)
			}
		}
	}

	rooms := []struct {
		name     string
		capacity int
		typ      string
	}{
		{"A-101", 60, "lecture"},
		{"A-102", 60, "lecture"},
		{"B-201", 24, "lab"},
	}
	for _, room := range rooms {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO classrooms (name, capacity, type, status) VALUES ($1, $2, $3, 'empty')
		`, room.name, room.capacity, room.typ); err != nil {
			return fmt.Errorf("seed classroom %q: %w", room.name, err)
		}
	}

	var courseID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO courses (name, code, description)
		VALUES ('Operating Systems', 'CS-301', 'Processes, scheduling, memory, filesystems')
		RETURNING id
	`).Scan(&courseID); err != nil {
		return fmt.Errorf("seed course: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO classes (course_id, semester, academic_year, status, pin)
		VALUES ($1, 'fall', '2026/2027', 'planned', '483921')
	`, courseID); err != nil {
		return fmt.Errorf("seed class: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	fmt.Println("demo data loaded")
	return nil
}
