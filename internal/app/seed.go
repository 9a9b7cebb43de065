package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-slot-queue/internal/booking"
	"github.com/hackgods/clinic-slot-queue/internal/directory"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var titles = []string{"Attending", "Chief Physician", "Resident"}

type SeedOptions struct {
	Departments    int
	DoctorsPerDept int
	Patients       int
	Days           int
	// Windows half-hour windows per day, starting at FirstHour:00.
	Windows          int
	FirstHour        int
	Capacity         int
	EmergencyReserve int
	StartDate        time.Time
	// Seed makes the generated names reproducible when non-zero.
	Seed uint64
}

func DefaultSeedOptions(today time.Time) SeedOptions {
	return SeedOptions{
		Departments:      4,
		DoctorsPerDept:   3,
		Patients:         500,
		Days:             7,
		Windows:          13,
		FirstHour:        8,
		Capacity:         3,
		EmergencyReserve: 1,
		StartDate:        booking.DateOf(today),
	}
}

type SeedSummary struct {
	Departments int
	Doctors     int
	Patients    int
	Slots       int
}

// Seed fills the directory and provisions slots for every doctor. Slots that
// already exist are left untouched, so it can be rerun.
func Seed(ctx context.Context, dir directory.Store, ledger booking.SlotLedger, opts SeedOptions, logger zerolog.Logger) (SeedSummary, error) {
	faker := gofakeit.New(opts.Seed)
	var sum SeedSummary

	var doctors []directory.Doctor
	for i := 0; i < opts.Departments; i++ {
		name := specialties[i%len(specialties)]
		if i >= len(specialties) {
			name = fmt.Sprintf("%s %d", name, i/len(specialties)+1)
		}
		dept := directory.Department{
			ID:          uuid.New(),
			Name:        name,
			Description: name + " outpatient clinic",
		}
		id, err := dir.InsertDepartment(ctx, dept)
		if err != nil {
			return sum, err
		}
		dept.ID = id
		sum.Departments++

		for j := 0; j < opts.DoctorsPerDept; j++ {
			doc := directory.Doctor{
				ID:           uuid.New(),
				DepartmentID: dept.ID,
				Name:         "Dr. " + faker.Name(),
				Title:        titles[faker.Number(0, len(titles)-1)],
				Specialty:    dept.Name,
			}
			if err := dir.InsertDoctor(ctx, doc); err != nil {
				return sum, err
			}
			doctors = append(doctors, doc)
			sum.Doctors++
		}
	}
	logger.Info().Int("departments", sum.Departments).Int("doctors", sum.Doctors).Msg("directory seeded")

	for i := 0; i < opts.Patients; i++ {
		p := directory.Patient{
			ID:    uuid.New(),
			Name:  faker.Name(),
			Phone: faker.Phone(),
		}
		if err := dir.InsertPatient(ctx, p); err != nil {
			return sum, err
		}
		sum.Patients++
	}
	logger.Info().Int("patients", sum.Patients).Msg("patients seeded")

	for _, doc := range doctors {
		n, err := ProvisionDays(ctx, ledger, doc.ID, opts)
		if err != nil {
			return sum, err
		}
		sum.Slots += n
	}
	logger.Info().Int("slots", sum.Slots).Msg("slots provisioned")

	return sum, nil
}

// ProvisionDays creates the standard day grid for one doctor and reports how
// many slots were new.
func ProvisionDays(ctx context.Context, ledger booking.SlotLedger, doctorID uuid.UUID, opts SeedOptions) (int, error) {
	created := 0
	for d := 0; d < opts.Days; d++ {
		date := opts.StartDate.AddDate(0, 0, d)
		for w := 0; w < opts.Windows; w++ {
			minutes := opts.FirstHour*60 + w*30
			spec := booking.SlotSpec{
				Key:              booking.NewSlotKey(doctorID, date, booking.WindowStarting(minutes/60, minutes%60, 30*time.Minute)),
				TotalCapacity:    opts.Capacity,
				EmergencyReserve: opts.EmergencyReserve,
			}

			_, err := ledger.Provision(ctx, spec)
			if errors.Is(err, booking.ErrSlotExists) {
				continue
			}
			if err != nil {
				return created, fmt.Errorf("provision %s: %w", spec.Key, err)
			}
			created++
		}
	}
	return created, nil
}
