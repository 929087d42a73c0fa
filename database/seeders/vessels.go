package seeders

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/jibzus/bluefleet-sub001/database"
	"github.com/jibzus/bluefleet-sub001/models/vessel"
)

// VesselStore is the part of the repository the seeder needs
type VesselStore interface {
	GetVessel(ctx context.Context, id string) (*vessel.Vessel, error)
	SaveVessel(ctx context.Context, v *vessel.Vessel) error
}

// DemoVessels are the listings used for local runs. Availability spans a year from now.
func DemoVessels(now time.Time) []vessel.Vessel {
	start := now.Add(-30 * 24 * time.Hour).Truncate(time.Hour)
	end := now.Add(365 * 24 * time.Hour).Truncate(time.Hour)
	window := func() []vessel.AvailabilityWindow {
		return []vessel.AvailabilityWindow{{StartAt: start, EndAt: end}}
	}

	return []vessel.Vessel{
		{
			ID: "9b3e0c52-5d0a-4d39-a0c1-5c1f0d8b2a11", OwnerID: "owner-demo-1", Name: "MV Coral Dawn",
			Specs:        vessel.Specs{MMSI: "657123400", IMO: "9312456", CallSign: "5NCD1", LengthMeters: 62.5},
			Availability: window(),
		},
		{
			ID: "4f8e7a10-8c7b-4d55-9a3e-2a6b1e0c9d22", OwnerID: "owner-demo-1", Name: "PSV Lagos Tide",
			Specs:        vessel.Specs{IMO: "9587412", LengthMeters: 78},
			Availability: window(),
		},
		{
			// no AIS identifier, the poller skips it
			ID: "c1d2e3f4-0a1b-4c2d-8e3f-4a5b6c7d8e33", OwnerID: "owner-demo-2", Name: "Crew Boat Ebi",
			Specs:        vessel.Specs{CallSign: "5NEB2", LengthMeters: 24},
			Availability: window(),
		},
	}
}

// SeedVessels inserts the demo vessels that are missing
func SeedVessels(ctx context.Context, store VesselStore, now time.Time) {
	log.Printf("🔍 Checking demo vessel listings...")

	vessels := DemoVessels(now)
	successCount := 0
	failureCount := 0
	for i := range vessels {
		v := vessels[i]
		_, err := store.GetVessel(ctx, v.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			log.Printf("❌ Failed to look up vessel %s: %v", v.Name, err)
			failureCount++
			continue
		}
		if err := store.SaveVessel(ctx, &v); err != nil {
			log.Printf("❌ Failed to seed vessel %s (%s): %v", v.Name, v.ID, err)
			failureCount++
			continue
		}
		log.Printf("✅ Added: %s (%s)", v.Name, v.ID)
		successCount++
	}

	log.Printf("🎉 Seeding completed! Successfully inserted %d vessels, %d failures", successCount, failureCount)
}
