package testutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Fixtures generates backend records with gofakeit. Roughly half of the
// records use the legacy field spellings the backend still emits.
// A Fixtures is not safe for concurrent use.
type Fixtures struct {
	faker *gofakeit.Faker
}

// NewFixtures returns a generator. The same seed yields the same records;
// zero picks a random seed.
func NewFixtures(seed uint64) *Fixtures {
	return &Fixtures{faker: gofakeit.New(seed)}
}

// ObjectID returns a 24 character hex id.
func (f *Fixtures) ObjectID() string {
	return strings.ReplaceAll(f.faker.UUID(), "-", "")[:24]
}

// Vehicle returns one vehicle record.
func (f *Fixtures) Vehicle() map[string]any {
	maker := f.faker.CarMaker()
	model := f.faker.CarModel()
	v := map[string]any{
		"_id":             f.ObjectID(),
		"company":         maker,
		"model":           model,
		"price":           f.faker.Price(500, 5000),
		"car_type":        f.faker.RandomString([]string{"suv", "sedan", "hatchback"}),
		"fuel_type":       strings.ToLower(f.faker.CarFuelType()),
		"seats":           f.faker.RandomInt([]int{4, 5, 7}),
		"location":        f.faker.City(),
		"image":           f.faker.Word() + ".jpg",
		"isDeleted":       false,
		"isAdminApproved": f.faker.Bool(),
	}
	plate := fmt.Sprintf("KA%02d%s%04d", f.faker.Number(1, 99), strings.ToUpper(f.faker.LetterN(2)), f.faker.Number(0, 9999))
	year := f.faker.Number(2008, 2024)
	if f.faker.Bool() {
		v["car_title"] = maker + " " + model
		v["transmition"] = f.faker.CarTransmissionType()
		v["year_made"] = year
		v["registeration_number"] = plate
	} else {
		v["name"] = maker + " " + model
		v["transmission"] = f.faker.CarTransmissionType()
		v["year"] = fmt.Sprint(year)
		v["registrationNumber"] = plate
	}
	return v
}

// Booking returns one booking record referencing vehicleID and userID.
func (f *Fixtures) Booking(vehicleID, userID string) map[string]any {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pickup := f.faker.DateRange(start, start.AddDate(1, 0, 0)).UTC().Truncate(time.Hour)
	dropoff := pickup.Add(time.Duration(f.faker.Number(1, 7)) * 24 * time.Hour)

	b := map[string]any{
		"_id":        f.ObjectID(),
		"totalPrice": f.faker.Price(1000, 20000),
	}
	if f.faker.Bool() {
		b["vehicleId"] = map[string]any{"_id": vehicleID, "name": f.faker.CarModel()}
		b["userId"] = userID
		b["pickupDate"] = pickup.Format(time.RFC3339)
		b["dropOffDate"] = dropoff.Format(time.RFC3339)
		b["pickUpLocation"] = f.faker.City()
		b["dropOffLocation"] = f.faker.City()
		b["status"] = f.faker.RandomString([]string{"booked", "onTrip", "tripCompleted", "canceled"})
	} else {
		b["vehicle_id"] = vehicleID
		b["user"] = map[string]any{"id": userID}
		b["pickup_date"] = float64(pickup.UnixMilli())
		b["dropoff_date"] = float64(dropoff.UnixMilli())
		b["pickup_location"] = f.faker.City()
		b["dropoff_location"] = f.faker.City()
		b["bookingStatus"] = f.faker.RandomString([]string{"Booked", "Completed"})
	}
	return b
}

// User returns one user record.
func (f *Fixtures) User() map[string]any {
	return map[string]any{
		"_id":            f.ObjectID(),
		"username":       f.faker.Username(),
		"email":          f.faker.Email(),
		"phoneNumber":    f.faker.Phone(),
		"profilePicture": "https://" + f.faker.DomainName() + "/" + f.faker.Word() + ".png",
		"isUser":         true,
		"active":         f.faker.Bool(),
	}
}

// Vendor returns one vendor record awaiting or holding approval.
func (f *Fixtures) Vendor() map[string]any {
	return map[string]any{
		"_id":             f.ObjectID(),
		"username":        f.faker.Company(),
		"email":           f.faker.Email(),
		"phone":           f.faker.Phone(),
		"isVendor":        true,
		"isAdminApproved": f.faker.Bool(),
	}
}

// Employee returns one employee record.
func (f *Fixtures) Employee() map[string]any {
	return map[string]any{
		"_id":         f.ObjectID(),
		"name":        f.faker.Name(),
		"email":       f.faker.Email(),
		"designation": f.faker.JobTitle(),
		"active":      f.faker.Bool(),
	}
}

// For returns n records of resource. Bookings reference freshly generated ids.
func (f *Fixtures) For(resource string, n int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for range n {
		switch resource {
		case "vehicles":
			out = append(out, f.Vehicle())
		case "bookings":
			out = append(out, f.Booking(f.ObjectID(), f.ObjectID()))
		case "users":
			out = append(out, f.User())
		case "vendors":
			out = append(out, f.Vendor())
		case "employees":
			out = append(out, f.Employee())
		default:
			out = append(out, map[string]any{"_id": f.ObjectID(), "name": f.faker.Word()})
		}
	}
	return out
}
