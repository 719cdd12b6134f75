// Package resource declares the list resources exposed by the backend: their
// envelope keys, field tables and REST endpoints.
package resource

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/envelope"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
)

// Resource names.
const (
	Vehicles  = "vehicles"
	Bookings  = "bookings"
	Users     = "users"
	Vendors   = "vendors"
	Employees = "employees"
)

// ErrUnknownResource is returned by Lookup for names that are not registered.
var ErrUnknownResource = errors.New("resource: unknown resource")

// DefaultBasePath is the collection path prefix, relative to the API prefix.
const DefaultBasePath = "/admin"

// Definition describes one list resource.
type Definition struct {
	Name          string
	PreferredKeys []string
	Schema        normalize.Schema
	// CollectionPath is the list endpoint, e.g. "/admin/vehicles".
	CollectionPath string
}

// ItemPath returns the endpoint of one record.
func (d Definition) ItemPath(id string) string {
	return d.CollectionPath + "/" + url.PathEscape(id)
}

// StatusPath returns the status-change endpoint of one record.
func (d Definition) StatusPath(id string) string {
	return d.ItemPath(id) + "/status"
}

// Catalog holds the registered definitions.
type Catalog struct {
	defs map[string]Definition
}

// NewCatalog builds the catalog of built-in resources. images resolves
// picture fields.
func NewCatalog(images normalize.ImageResolver) *Catalog {
	c := &Catalog{defs: make(map[string]Definition)}
	for _, def := range []Definition{
		define(Vehicles, vehicleRules(images)),
		define(Bookings, bookingRules()),
		define(Users, personRules(images)),
		define(Vendors, personRules(images)),
		define(Employees, employeeRules()),
	} {
		c.Register(def)
	}
	return c
}

func define(name string, rules []normalize.FieldRule) Definition {
	return Definition{
		Name:           name,
		PreferredKeys:  envelope.DefaultKeys(name),
		Schema:         normalize.Schema{Resource: name, Rules: rules},
		CollectionPath: DefaultBasePath + "/" + name,
	}
}

// Register adds or replaces a definition.
func (c *Catalog) Register(def Definition) {
	c.defs[def.Name] = def
}

// Lookup returns the definition of name. Names are case-insensitive.
func (c *Catalog) Lookup(name string) (Definition, error) {
	def, ok := c.defs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownResource, name, strings.Join(c.Names(), ", "))
	}
	return def, nil
}

// Names returns the registered resource names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func text(name string, sources ...string) normalize.FieldRule {
	return normalize.FieldRule{Name: name, Sources: sources, Transform: normalize.Text, Empty: normalize.EmptyText}
}

func classifier(name string, sources ...string) normalize.FieldRule {
	return normalize.FieldRule{Name: name, Sources: sources, Transform: normalize.Lower, Empty: ""}
}

func integer(name string, sources ...string) normalize.FieldRule {
	return normalize.FieldRule{Name: name, Sources: sources, Transform: normalize.Integer, Empty: 0}
}

func money(name string, sources ...string) normalize.FieldRule {
	return normalize.FieldRule{Name: name, Sources: sources, Transform: normalize.Money, Empty: decimal.Zero}
}

func date(name string, sources ...string) normalize.FieldRule {
	return normalize.FieldRule{Name: name, Sources: sources, Transform: normalize.Date, Empty: nil}
}

func vehicleRules(images normalize.ImageResolver) []normalize.FieldRule {
	return []normalize.FieldRule{
		text("name", "name", "car_title", "title", "model"),
		text("company", "company", "brand", "make"),
		text("model", "model", "variant"),
		integer("year", "year_made", "year", "yearMade"),
		money("price", "price", "rent", "pricePerDay"),
		classifier("car_type", "car_type", "carType", "type"),
		classifier("transmission", "transmition", "transmission"),
		classifier("fuel_type", "fuel_type", "fuelType"),
		integer("seats", "seats", "seat"),
		text("location", "location", "district"),
		text("registration", "registeration_number", "registrationNumber", "registration_number"),
		images.Rule("image", "image", "images", "imageUrl", "img"),
		normalize.StatusRule(),
	}
}

func bookingRules() []normalize.FieldRule {
	return []normalize.FieldRule{
		normalize.StatusRule("status", "bookingStatus"),
		{Name: "vehicleId", Sources: []string{"vehicleId", "vehicle_id", "vehicle"}, Transform: refID, Empty: ""},
		{Name: "userId", Sources: []string{"userId", "user_id", "user"}, Transform: refID, Empty: ""},
		date("pickupDate", "pickupDate", "pickup_date", "fromDate"),
		date("dropoffDate", "dropoffDate", "dropOffDate", "dropoff_date", "toDate"),
		text("pickupLocation", "pickUpLocation", "pickupLocation", "pickup_location"),
		text("dropoffLocation", "dropOffLocation", "dropoffLocation", "dropoff_location"),
		money("totalPrice", "totalPrice", "total_price", "amount"),
	}
}

func personRules(images normalize.ImageResolver) []normalize.FieldRule {
	return []normalize.FieldRule{
		text("name", "name", "username", "fullName"),
		text("email", "email"),
		text("phone", "phoneNumber", "phone", "mobile"),
		classifier("role", "role", "userType"),
		normalize.StatusRule(),
		images.Rule("image", "profilePicture", "avatar", "image"),
	}
}

func employeeRules() []normalize.FieldRule {
	return []normalize.FieldRule{
		text("name", "name", "username", "fullName"),
		text("email", "email"),
		classifier("role", "role", "designation"),
		normalize.StatusRule(),
	}
}

// refID resolves a reference that may be an id or an embedded document.
func refID(v any) (any, bool) {
	if m, ok := v.(map[string]any); ok {
		for _, key := range normalize.DefaultIDKeys {
			if id, ok := normalize.ID(m[key]); ok {
				return id, true
			}
		}
		return nil, false
	}
	return normalize.ID(v)
}
