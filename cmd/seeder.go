package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/expense-claims/internal/auth"
	claimDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/claim"
	userDatamodel "github.com/frahmantamala/expense-claims/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-claims/internal/user"
	userPostgres "github.com/frahmantamala/expense-claims/internal/user/postgres"
	"github.com/frahmantamala/expense-claims/pkg/logger"
)

const seedPassword = "password"

var seedUsers = []auth.RegisterDTO{
	{Username: "staff", Email: "staff@mail.com", Password: seedPassword, Role: "STAFF"},
	{Username: "manager", Email: "manager@mail.com", Password: seedPassword, Role: "MANAGER"},
	{Username: "finance", Email: "finance@mail.com", Password: seedPassword, Role: "FINANCE"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed one user per role for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		lg := logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		gdb, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			if err := clearSeedData(gdb); err != nil {
				log.Fatalf("failed to clear data: %v", err)
			}
			fmt.Println("Cleared expense claims and users")
		}

		// token generation is never reached while seeding
		svc := auth.NewService(user.NewService(userPostgres.NewUserRepository(gdb)), nil, cfg.Security.BCryptCost, lg)

		ctx := context.Background()
		for _, dto := range seedUsers {
			u, err := svc.Register(ctx, dto)
			switch {
			case errors.Is(err, auth.ErrUsernameTaken):
				fmt.Printf("%s user already exists\n", dto.Username)
			case err != nil:
				log.Fatalf("failed to seed %s user: %v", dto.Username, err)
			default:
				fmt.Printf("Seeded %s user: %s (id %d)\n", u.Role, u.Username, u.ID)
			}
		}
	},
}

func clearSeedData(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&claimDatamodel.ExpenseClaim{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&userDatamodel.User{}).Error
	})
}
