package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentaflow/clinic/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	serviceIDs, err := seedServices(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}

	patientIDs, err := seedPatients(context.Background(), pool, 500)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	if err := seedAppointments(context.Background(), pool, patientIDs, serviceIDs, 200); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

type seedService struct {
	name        string
	description string
	price       float64
	duration    int
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	services := []seedService{
		{"Dental Consultation", "General check-up and treatment planning", 500, 30},
		{"Oral Prophylaxis", "Scaling and polishing", 1200, 45},
		{"Tooth Extraction", "Simple extraction, per tooth", 1500, 30},
		{"Surgical Extraction", "Impacted tooth removal", 8000, 90},
		{"Composite Filling", "Light-cured restoration, per tooth", 1800, 45},
		{"Root Canal Treatment", "Anterior tooth, per canal", 8000, 90},
		{"Dental Crown", "Porcelain fused to metal", 12000, 60},
		{"Teeth Whitening", "In-office bleaching, both arches", 15000, 90},
		{"Denture (Partial)", "Removable partial denture, per arch", 10000, 60},
		{"Dental X-Ray", "Periapical radiograph", 600, 15},
		{"Fluoride Treatment", "Topical fluoride application", 800, 30},
		{"Orthodontic Consultation", "Braces assessment and records", 1000, 45},
	}

	log.Printf("seeding %d services", len(services))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(services))
	for _, svc := range services {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, name, description, price, duration_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, id, svc.name, svc.description, svc.price, svc.duration)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("services seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 100

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			_, err := tx.Exec(ctx, `
				INSERT INTO profiles (id, full_name, email, phone, role, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 'patient', now(), now())
			`, id, gofakeit.Name(), gofakeit.Email(), gofakeit.Phone())
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *pgxpool.Pool, patientIDs, serviceIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d appointments", count)

	branches := []string{"Cabugao", "Candon"}
	times := []string{"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "13:00", "14:00", "15:00"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		patientID := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]
		branch := branches[gofakeit.Number(0, len(branches)-1)]
		date := time.Now().AddDate(0, 0, gofakeit.Number(1, 21))
		timeOfDay := times[gofakeit.Number(0, len(times)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, branch, appointment_date, appointment_time,
				status, is_emergency, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, now(), now())
		`, id, patientID, branch, date, timeOfDay, gofakeit.Number(0, 19) == 0, gofakeit.Sentence(6))
		if err != nil {
			return err
		}

		serviceID := serviceIDs[gofakeit.Number(0, len(serviceIDs)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO appointment_services (appointment_id, service_id)
			VALUES ($1, $2)
		`, id, serviceID)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("appointments seeded")
	return nil
}
