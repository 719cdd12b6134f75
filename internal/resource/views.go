package resource

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
)

// Vehicle is the typed view of a normalized vehicle.
type Vehicle struct {
	ID           string          `mapstructure:"id" json:"id" yaml:"id" validate:"required"`
	Name         string          `mapstructure:"name" json:"name" yaml:"name"`
	Company      string          `mapstructure:"company" json:"company" yaml:"company"`
	Model        string          `mapstructure:"model" json:"model" yaml:"model"`
	Year         int             `mapstructure:"year" json:"year" yaml:"year" validate:"gte=0"`
	Price        decimal.Decimal `mapstructure:"price" json:"price" yaml:"price"`
	CarType      string          `mapstructure:"car_type" json:"car_type" yaml:"car_type"`
	Transmission string          `mapstructure:"transmission" json:"transmission" yaml:"transmission"`
	FuelType     string          `mapstructure:"fuel_type" json:"fuel_type" yaml:"fuel_type"`
	Seats        int             `mapstructure:"seats" json:"seats" yaml:"seats" validate:"gte=0"`
	Location     string          `mapstructure:"location" json:"location" yaml:"location"`
	Registration string          `mapstructure:"registration" json:"registration" yaml:"registration"`
	Image        string          `mapstructure:"image" json:"image" yaml:"image" validate:"required"`
	Status       string          `mapstructure:"status" json:"status" yaml:"status"`
}

// Booking is the typed view of a normalized booking.
type Booking struct {
	ID              string          `mapstructure:"id" json:"id" yaml:"id" validate:"required"`
	Status          string          `mapstructure:"status" json:"status" yaml:"status"`
	VehicleID       string          `mapstructure:"vehicleId" json:"vehicleId" yaml:"vehicleId"`
	UserID          string          `mapstructure:"userId" json:"userId" yaml:"userId"`
	PickupDate      *time.Time      `mapstructure:"pickupDate" json:"pickupDate" yaml:"pickupDate"`
	DropoffDate     *time.Time      `mapstructure:"dropoffDate" json:"dropoffDate" yaml:"dropoffDate"`
	PickupLocation  string          `mapstructure:"pickupLocation" json:"pickupLocation" yaml:"pickupLocation"`
	DropoffLocation string          `mapstructure:"dropoffLocation" json:"dropoffLocation" yaml:"dropoffLocation"`
	TotalPrice      decimal.Decimal `mapstructure:"totalPrice" json:"totalPrice" yaml:"totalPrice"`
}

// Person is the typed view of users and vendors.
type Person struct {
	ID     string `mapstructure:"id" json:"id" yaml:"id" validate:"required"`
	Name   string `mapstructure:"name" json:"name" yaml:"name"`
	Email  string `mapstructure:"email" json:"email" yaml:"email"`
	Phone  string `mapstructure:"phone" json:"phone" yaml:"phone"`
	Role   string `mapstructure:"role" json:"role" yaml:"role"`
	Status string `mapstructure:"status" json:"status" yaml:"status"`
	Image  string `mapstructure:"image" json:"image" yaml:"image"`
}

// Employee is the typed view of a normalized employee.
type Employee struct {
	ID     string `mapstructure:"id" json:"id" yaml:"id" validate:"required"`
	Name   string `mapstructure:"name" json:"name" yaml:"name"`
	Email  string `mapstructure:"email" json:"email" yaml:"email"`
	Role   string `mapstructure:"role" json:"role" yaml:"role"`
	Status string `mapstructure:"status" json:"status" yaml:"status"`
}

var validate = validator.New()

// Decode converts a normalized item into a typed view and validates it.
func Decode[T any](item *normalize.Item) (T, error) {
	var out T
	if err := item.Decode(&out); err != nil {
		return out, err
	}
	if err := validate.Struct(out); err != nil {
		return out, fmt.Errorf("resource: invalid %T %q: %w", out, item.ID, err)
	}
	return out, nil
}

// DecodeAll decodes items in order, skipping those that fail validation.
// The number of skipped items is returned alongside.
func DecodeAll[T any](items []*normalize.Item) ([]T, int) {
	out := make([]T, 0, len(items))
	skipped := 0
	for _, item := range items {
		v, err := Decode[T](item)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

// Views decodes items into the typed view of the named resource. Items that
// fail validation are left out and counted.
func Views(name string, items []*normalize.Item) (any, int, error) {
	switch name {
	case Vehicles:
		out, skipped := DecodeAll[Vehicle](items)
		return out, skipped, nil
	case Bookings:
		out, skipped := DecodeAll[Booking](items)
		return out, skipped, nil
	case Users, Vendors:
		out, skipped := DecodeAll[Person](items)
		return out, skipped, nil
	case Employees:
		out, skipped := DecodeAll[Employee](items)
		return out, skipped, nil
	default:
		return nil, 0, fmt.Errorf("%w: %q has no typed view", ErrUnknownResource, name)
	}
}
