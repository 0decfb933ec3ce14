package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	studentmodel "github.com/bhs-school/fee-payments/internal/core/datamodel/student"
	"github.com/bhs-school/fee-payments/pkg/logger"
)

var seedClear bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample students",
	Long:  `Seed the students table with sample records for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		initLogger(cfg)

		app, err := newApplication(cfg, logger.LoggerWrapper())
		if err != nil {
			log.Fatalf("failed to init application: %v", err)
		}
		defer app.close()

		ctx := cmd.Context()

		if seedClear {
			// Students with payment history are kept; the ledger references them.
			res := app.orm.WithContext(ctx).Exec(
				"DELETE FROM students WHERE id NOT IN (SELECT DISTINCT student_id FROM fee_payments)")
			if res.Error != nil {
				log.Fatalf("failed to clear students: %v", res.Error)
			}
			fmt.Printf("Removed %d students without payments\n", res.RowsAffected)
		}

		for _, s := range sampleStudents() {
			if err := app.students.Upsert(ctx, s); err != nil {
				log.Fatalf("failed to seed student %s: %v", s.ID, err)
			}
			fmt.Printf("Seeded student %s (%s, %s)\n", s.ID, s.FullName, s.ClassName)
		}

		total, err := app.students.Count(ctx)
		if err != nil {
			log.Fatalf("failed to count students: %v", err)
		}
		fmt.Println("Students in directory:", total)
	},
}

func sampleStudents() []*studentmodel.Student {
	return []*studentmodel.Student{
		{ID: "S123", FullName: "Tom Pupil", ClassName: "P5", IsActive: true},
		{ID: "S124", FullName: "Grace Namukasa", ClassName: "P7", IsActive: true},
		{ID: "S200", FullName: "Isaac Okello", ClassName: "S2", IsActive: true},
		{ID: "S201", FullName: "Ruth Achieng", ClassName: "S4", IsActive: true},
		// Left the school; payments against this id are refused.
		{ID: "S099", FullName: "Peter Mugisha", ClassName: "S6", IsActive: false},
	}
}

func init() {
	seedCmd.Flags().BoolVar(&seedClear, "clear", false, "remove students without payment history before seeding")
}
