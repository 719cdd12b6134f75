package resource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/client"
)

// Requester is the part of the HTTP client the service needs.
type Requester interface {
	Get(ctx context.Context, path string, queryParams map[string]string) (*client.Response, error)
	Patch(ctx context.Context, path string, body any) (*client.Response, error)
	Delete(ctx context.Context, path string) (*client.Response, error)
}

// Service issues the REST calls of one resource.
type Service struct {
	api    Requester
	def    Definition
	logger *zap.Logger
}

// NewService creates a service for def. A nil logger disables logging.
func NewService(api Requester, def Definition, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, def: def, logger: logger.Named("resource").With(zap.String("resource", def.Name))}
}

// Definition returns the resource definition.
func (s *Service) Definition() Definition {
	return s.def
}

// List fetches the raw list payload. The body is returned undecoded.
func (s *Service) List(ctx context.Context) ([]byte, error) {
	resp, err := s.api.Get(ctx, s.def.CollectionPath, nil)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.def.Name, err)
	}
	s.logger.Debug("list fetched", zap.Int("bytes", len(resp.Body)), zap.Duration("duration", resp.Duration))
	return resp.Body, nil
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.api.Delete(ctx, s.def.ItemPath(id)); err != nil {
		return fmt.Errorf("deleting %s %s: %w", s.def.Name, id, err)
	}
	s.logger.Info("record deleted", zap.String("id", id))
	return nil
}

// statusBody is the payload of a status change.
type statusBody struct {
	Status string `json:"status"`
}

// UpdateStatus changes the status of one record.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	if _, err := s.api.Patch(ctx, s.def.StatusPath(id), statusBody{Status: status}); err != nil {
		return fmt.Errorf("updating %s %s status: %w", s.def.Name, id, err)
	}
	s.logger.Info("status updated", zap.String("id", id), zap.String("status", status))
	return nil
}

// DeleteCall returns Delete bound to id, as a remote call for optimistic mutations.
func (s *Service) DeleteCall(id string) func(context.Context) error {
	return func(ctx context.Context) error { return s.Delete(ctx, id) }
}

// StatusCall returns UpdateStatus bound to id and status.
func (s *Service) StatusCall(id, status string) func(context.Context) error {
	return func(ctx context.Context) error { return s.UpdateStatus(ctx, id, status) }
}
