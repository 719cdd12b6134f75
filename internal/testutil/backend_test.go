package testutil_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/config"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/liststore"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/normalize"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/resource"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/testutil"
)

var images = normalize.ImageResolver{StaticRoot: "/uploads/vehicles", Placeholder: "/images/car-placeholder.jpg", DefaultExt: ".jpg"}

func newService(t *testing.T, b *testutil.Backend, name string, opts ...client.Option) *resource.Service {
	t.Helper()
	cfg := config.Default().Target
	cfg.BaseURL = b.URL()
	cfg.APIPrefix = testutil.APIPrefix
	cfg.RetryCount = 0

	c, err := client.NewClient(cfg, opts...)
	require.NoError(t, err)
	def, err := resource.NewCatalog(images).Lookup(name)
	require.NoError(t, err)
	return resource.NewService(c, def, nil)
}

func TestBackend_EveryEnvelopeLoads(t *testing.T) {
	envelopes := []testutil.Envelope{
		testutil.EnvelopeData,
		testutil.EnvelopeNamed,
		testutil.EnvelopeAll,
		testutil.EnvelopeBare,
	}
	for _, env := range envelopes {
		t.Run(string(env), func(t *testing.T) {
			b := testutil.NewBackend(t, testutil.WithEnvelope(resource.Vehicles, env))
			b.Seed(resource.Vehicles, testutil.NewFixtures(7).For(resource.Vehicles, 4)...)

			svc := newService(t, b, resource.Vehicles)
			def := svc.Definition()
			s := liststore.New(def.Schema, liststore.WithPreferredKeys(def.PreferredKeys...))
			defer s.Close()

			res := s.Load(context.Background(), svc.List)
			require.Equal(t, liststore.OutcomeLoaded, res.Outcome, res.Message)
			assert.Equal(t, 4, res.Count)

			vehicles, skipped := resource.DecodeAll[resource.Vehicle](s.Items())
			assert.Zero(t, skipped)
			for _, v := range vehicles {
				assert.NotEqual(t, normalize.EmptyText, v.Name)
				assert.NotEmpty(t, v.Registration)
				assert.Positive(t, v.Year)
				assert.True(t, strings.HasPrefix(v.Image, "/uploads/vehicles/"), v.Image)
			}
		})
	}
}

func TestBackend_DeleteAndStatus(t *testing.T) {
	for _, opts := range [][]testutil.Option{nil, {testutil.WithMisspelledSuccess()}} {
		b := testutil.NewBackend(t, opts...)
		b.Seed(resource.Users,
			map[string]any{"_id": "u1", "username": "asha", "active": true},
			map[string]any{"_id": "u2", "username": "ravi", "active": true},
		)
		svc := newService(t, b, resource.Users)
		ctx := context.Background()

		require.NoError(t, svc.Delete(ctx, "u1"))
		require.NoError(t, svc.UpdateStatus(ctx, "u2", "inactive"))

		records := b.Records(resource.Users)
		require.Len(t, records, 1)
		assert.Equal(t, "inactive", records[0]["status"])

		err := svc.UpdateStatus(ctx, "missing", "inactive")
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "users missing not found", apiErr.Message)

		err = svc.Delete(ctx, "missing")
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	}
}

func TestBackend_RequiresToken(t *testing.T) {
	b := testutil.NewBackend(t, testutil.WithToken("secret"))
	b.Seed(resource.Employees, testutil.NewFixtures(1).For(resource.Employees, 2)...)

	_, err := newService(t, b, resource.Employees).List(context.Background())
	require.Error(t, err)
	assert.True(t, client.IsAuthFailure(err))
	assert.Equal(t, "jwt expired", client.UserMessage(err, ""))

	auth := client.NewAuthManager(client.NewMemoryTokenStore("secret"), nil)
	body, err := newService(t, b, resource.Employees, client.WithAuth(auth)).List(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(body), `"data"`)

	calls := b.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Authorization)
	assert.Equal(t, "Bearer secret", calls[1].Authorization)
	assert.NotEmpty(t, calls[1].RequestID)
}

func TestBackend_FailNext(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Seed(resource.Bookings, testutil.NewFixtures(3).For(resource.Bookings, 2)...)
	b.FailNext(http.MethodGet, resource.Bookings, http.StatusBadGateway, "upstream unavailable")

	svc := newService(t, b, resource.Bookings)
	_, err := svc.List(context.Background())
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)

	_, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, b.CallCount(http.MethodGet, resource.Bookings))
}

func TestFixtures_SameSeedSameRecords(t *testing.T) {
	a := testutil.NewFixtures(42).For(resource.Vehicles, 5)
	b := testutil.NewFixtures(42).For(resource.Vehicles, 5)
	assert.Equal(t, a, b)
}

func TestFixtures_NormalizeForEveryResource(t *testing.T) {
	catalog := resource.NewCatalog(images)
	f := testutil.NewFixtures(9)

	for _, name := range catalog.Names() {
		def, err := catalog.Lookup(name)
		require.NoError(t, err)

		raw := make([]any, 0, 20)
		for _, r := range f.For(name, 20) {
			raw = append(raw, r)
		}
		items := def.Schema.NormalizeAll(raw)
		require.Len(t, items, 20, name)
		for _, item := range items {
			assert.Len(t, item.ID, 24, name)
		}
	}

	bookings, skipped := resource.DecodeAll[resource.Booking](catalogItems(t, catalog, resource.Bookings, f))
	assert.Zero(t, skipped)
	for _, b := range bookings {
		require.NotNil(t, b.PickupDate)
		require.NotNil(t, b.DropoffDate)
		assert.True(t, b.DropoffDate.After(*b.PickupDate))
		assert.Len(t, b.VehicleID, 24)
		assert.Len(t, b.UserID, 24)
		assert.NotEmpty(t, b.Status)
	}
}

func catalogItems(t *testing.T, c *resource.Catalog, name string, f *testutil.Fixtures) []*normalize.Item {
	t.Helper()
	def, err := c.Lookup(name)
	require.NoError(t, err)
	raw := make([]any, 0, 10)
	for _, r := range f.For(name, 10) {
		raw = append(raw, r)
	}
	return def.Schema.NormalizeAll(raw)
}
