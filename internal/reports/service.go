package reports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/OpenBPLS/bpls/internal/application/model"
)

const exportPageSize = 100

// ApplicationReader is the read side of the admin console. *service.ReviewService implements it.
type ApplicationReader interface {
	ListApplications(ctx context.Context, filter model.ApplicationFilter) (*model.ApplicationListDTO, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*model.ApplicationAggregate, error)
}

// Service builds admin exports from the application store.
type Service struct {
	reader ApplicationReader
	now    func() time.Time
}

func NewService(reader ApplicationReader) *Service {
	return &Service{reader: reader, now: time.Now}
}

// ApplicationsXLSX exports every application matching filter, ignoring its paging.
func (s *Service) ApplicationsXLSX(ctx context.Context, filter model.ApplicationFilter) (*Export, error) {
	var items []model.ApplicationSummary
	limit := exportPageSize
	filter.Limit = &limit
	for offset := 0; ; offset += exportPageSize {
		page := offset
		filter.Offset = &page
		list, err := s.reader.ListApplications(ctx, filter)
		if err != nil {
			return nil, err
		}
		items = append(items, list.Items...)
		if len(list.Items) < exportPageSize || int64(len(items)) >= list.TotalCount {
			break
		}
	}
	return ApplicationsWorkbook(items, s.now())
}

// ApplicationPDF exports the summary of one application.
func (s *Service) ApplicationPDF(ctx context.Context, id uuid.UUID) (*Export, error) {
	agg, err := s.reader.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	return ApplicationSummaryPDF(agg)
}
