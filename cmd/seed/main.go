package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	availabilityrepo "agendly/internal/availability/repository"
	availabilityservice "agendly/internal/availability/service"
	availabilityvalidator "agendly/internal/availability/validator"
	"agendly/pkg/clock"
	"agendly/pkg/config"
	"agendly/pkg/model"

	"github.com/brianvoe/gofakeit/v7"
)

const JobName = "seed"

func main() {
	tenants := flag.Int("tenants", 3, "number of tenants to seed")
	staffPerTenant := flag.Int("staff", 5, "staff members per tenant")
	flag.Parse()

	cfg := config.Load(JobName)
	var repo availabilityrepo.StaffAvailabilityRepository
	if cfg.ReservationStore == config.StorePostgres {
		cfg.SetPostgres()
		repo = availabilityrepo.NewPgStaffAvailabilityRepository(cfg.Client.Postgres)
	} else {
		cfg.SetMongo()
		repo = availabilityrepo.NewMongoStaffAvailabilityRepository(cfg)
	}
	defer cfg.GracefulShutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	availability := availabilityservice.NewStaffAvailabilityValidator(repo, availabilityvalidator.NewWindowValidator(cfg.Log), clock.Real{}, cfg)

	saved := 0
	for t := 0; t < *tenants; t++ {
		tenantID := fmt.Sprintf("tenant-%s", strings.ToLower(gofakeit.LetterN(6)))
		for s := 0; s < *staffPerTenant; s++ {
			staffID := fmt.Sprintf("staff-%s-%d", strings.ToLower(gofakeit.FirstName()), gofakeit.Number(100, 999))
			for _, window := range fakeWeek(tenantID, staffID) {
				if err := availability.SaveWindow(ctx, window); err != nil {
					cfg.Log.Fatal("Failed to seed staff availability", "tenant_id", tenantID, "staff_id", staffID, "error", err)
				}
				saved++
			}
		}
		cfg.Log.Info("Seeded tenant", "tenant_id", tenantID, "staff", *staffPerTenant)
	}

	cfg.Log.Info("Seed complete", "windows", saved)
}

// fakeWeek builds one window per weekday. Working days get a shift that
// starts between 07:00 and 10:00 and lasts 7 to 10 hours, with a lunch
// break on most days.
func fakeWeek(tenantID, staffID string) []*model.StaffAvailability {
	weekendStart := time.Weekday(gofakeit.Number(5, 6))
	week := make([]*model.StaffAvailability, 0, 7)

	for day := time.Sunday; day <= time.Saturday; day++ {
		window := &model.StaffAvailability{
			TenantID:  tenantID,
			StaffID:   staffID,
			DayOfWeek: day,
		}

		startMin := 7*60 + 30*gofakeit.Number(0, 6)
		endMin := startMin + 60*gofakeit.Number(7, 10)
		window.WorkStart = model.FormatTimeOfDay(startMin)
		window.WorkEnd = model.FormatTimeOfDay(endMin)
		window.IsAvailable = day != weekendStart && day != (weekendStart+1)%7

		if gofakeit.Number(1, 10) <= 8 {
			breakStart := 12*60 + 30*gofakeit.Number(0, 2)
			window.BreakStart = model.FormatTimeOfDay(breakStart)
			window.BreakEnd = model.FormatTimeOfDay(breakStart + 60)
		}
		week = append(week, window)
	}
	return week
}
