package extraction_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"casework/internal/casefile"
	"casework/internal/extraction"
	"casework/internal/extraction/mocks"
)

//go:generate mockgen -source=extractor.go -destination=mocks/mocks.go -package=mocks Extractor
//go:generate mockgen -source=cache.go -destination=mocks/cache_mocks.go -package=mocks Cache

type CoordinatorSuite struct {
	suite.Suite
	ctx        context.Context
	extractors map[casefile.Kind]*mocks.MockExtractor
	cache      *mocks.MockCache
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.ctx = context.Background()
	ctrl := gomock.NewController(s.T())
	s.extractors = make(map[casefile.Kind]*mocks.MockExtractor)
	for _, k := range casefile.AllKinds {
		s.extractors[k] = mocks.NewMockExtractor(ctrl)
	}
	s.cache = mocks.NewMockCache(ctrl)
}

func (s *CoordinatorSuite) newCoordinator(opts ...extraction.Option) *extraction.Coordinator {
	reg := extraction.NewRegistry()
	for k, ex := range s.extractors {
		s.Require().NoError(reg.Register(k, ex))
	}
	opts = append(opts,
		extraction.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		extraction.WithMetrics(extraction.NewMetrics(prometheus.NewRegistry())),
	)
	c, err := extraction.NewCoordinator(reg, opts...)
	s.Require().NoError(err)
	return c
}

func allDocuments() map[casefile.Kind]extraction.Document {
	docs := make(map[casefile.Kind]extraction.Document)
	for _, k := range casefile.AllKinds {
		docs[k] = extraction.Document{Kind: k, Filename: string(k) + ".json", Data: []byte(k)}
	}
	return docs
}

func validFields(kind casefile.Kind) casefile.Fields {
	switch kind {
	case casefile.KindBankStatement:
		return casefile.Fields{"account_holder": "Aisha Rahman", "estimated_monthly_income": 9000}
	case casefile.KindAssetsLiabilities:
		return casefile.Fields{"family_size": 3, "housing_type": "rented"}
	case casefile.KindCreditReport:
		return casefile.Fields{"applicant_name": "Aisha Rahman", "credit_score": 700}
	default:
		return casefile.Fields{"name": "Aisha Rahman", "emirates_id": "784-1990-1234567-1"}
	}
}

// =============================================================================
// Extract Tests
// =============================================================================

func (s *CoordinatorSuite) TestAllSucceed() {
	for k, ex := range s.extractors {
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator().Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Len(delta.Documents, 4)
	s.Empty(delta.StageErrors)
	for _, k := range casefile.AllKinds {
		s.True(delta.Documents[k].OK(), k)
		s.Equal(k, delta.Documents[k].Document.Kind())
	}
}

func (s *CoordinatorSuite) TestSingleFailureDoesNotAbort() {
	for k, ex := range s.extractors {
		if k == casefile.KindEmiratesID {
			ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(nil, errors.New("ocr engine crashed"))
			continue
		}
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator().Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Require().Len(delta.StageErrors, 1)
	s.Equal(casefile.ErrorExtraction, delta.StageErrors[0].Kind)
	s.Equal(string(casefile.KindEmiratesID), delta.StageErrors[0].Subject)

	failed := delta.Documents[casefile.KindEmiratesID]
	s.False(failed.OK())
	s.Require().NotNil(failed.Failure)
	s.Equal(string(extraction.ErrorInternal), failed.Failure.Category)
	s.Len(delta.Documents.Extracted(), 3)
}

func (s *CoordinatorSuite) TestPanickingExtractorIsInternalFailure() {
	for k, ex := range s.extractors {
		if k == casefile.KindCreditReport {
			ex.EXPECT().Extract(gomock.Any(), gomock.Any()).
				DoAndReturn(func(context.Context, extraction.Document) (casefile.Fields, error) {
					panic("pdf table parser: index out of range")
				})
			continue
		}
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator().Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Require().Len(delta.StageErrors, 1)
	s.Equal(string(casefile.KindCreditReport), delta.StageErrors[0].Subject)
	s.Contains(delta.StageErrors[0].Message, "extractor panicked")

	failed := delta.Documents[casefile.KindCreditReport]
	s.Equal(casefile.KindCreditReport, failed.Kind)
	s.Require().NotNil(failed.Failure)
	s.Equal(string(extraction.ErrorInternal), failed.Failure.Category)
	s.Len(delta.Documents.Extracted(), 3)
}

func (s *CoordinatorSuite) TestMissingDocumentIsNotFound() {
	docs := allDocuments()
	delete(docs, casefile.KindCreditReport)
	for k, ex := range s.extractors {
		if k == casefile.KindCreditReport {
			continue
		}
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator().Extract(s.ctx, docs)
	s.Require().NoError(err)
	s.Equal(string(extraction.ErrorNotFound), delta.Documents[casefile.KindCreditReport].Failure.Category)
}

func (s *CoordinatorSuite) TestSchemaMismatchIsBadData() {
	for k, ex := range s.extractors {
		if k == casefile.KindCreditReport {
			ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(casefile.Fields{"credit_score": "excellent"}, nil)
			continue
		}
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator().Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Equal(string(extraction.ErrorBadData), delta.Documents[casefile.KindCreditReport].Failure.Category)
}

func (s *CoordinatorSuite) TestAllFail() {
	for _, ex := range s.extractors {
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(nil, errors.New("unreadable"))
	}

	delta, err := s.newCoordinator().Extract(s.ctx, allDocuments())
	s.ErrorIs(err, extraction.ErrAllDocumentsFailed)
	s.Len(delta.Documents, 4)
	s.Empty(delta.Documents.Extracted())

	var marker int
	for _, se := range delta.StageErrors {
		if se.Kind == casefile.ErrorAllDocumentsFailed {
			marker++
		}
	}
	s.Equal(1, marker)
	s.Len(delta.StageErrors, 5)
}

func (s *CoordinatorSuite) TestPerDocumentTimeout() {
	for k, ex := range s.extractors {
		if k == casefile.KindBankStatement {
			ex.EXPECT().Extract(gomock.Any(), gomock.Any()).DoAndReturn(
				func(ctx context.Context, _ extraction.Document) (casefile.Fields, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				})
			continue
		}
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator(extraction.WithDocumentTimeout(20*time.Millisecond)).Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	failure := delta.Documents[casefile.KindBankStatement].Failure
	s.Require().NotNil(failure)
	s.Equal(string(extraction.ErrorTimeout), failure.Category)
}

func (s *CoordinatorSuite) TestExtractionsRunConcurrently() {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	for k, ex := range s.extractors {
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, extraction.Document) (casefile.Fields, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				if n == 4 {
					close(release)
				}
				select {
				case <-release:
				case <-time.After(time.Second):
				}
				inFlight.Add(-1)
				return validFields(k), nil
			})
	}

	_, err := s.newCoordinator().Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Equal(int32(4), peak.Load())
}

// =============================================================================
// Cache Tests
// =============================================================================

func (s *CoordinatorSuite) TestCacheHitSkipsExtractor() {
	s.cache.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, key string) (casefile.Fields, bool, error) {
			for _, k := range casefile.AllKinds {
				if key == extraction.CacheKey(k, []byte(k)) {
					return validFields(k), true, nil
				}
			}
			return nil, false, nil
		}).Times(4)

	delta, err := s.newCoordinator(extraction.WithCache(s.cache)).Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Len(delta.Documents.Extracted(), 4)
}

func (s *CoordinatorSuite) TestCacheErrorsAreIgnored() {
	s.cache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, false, errors.New("redis down")).Times(4)
	s.cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down")).Times(4)
	for k, ex := range s.extractors {
		ex.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(validFields(k), nil)
	}

	delta, err := s.newCoordinator(extraction.WithCache(s.cache)).Extract(s.ctx, allDocuments())
	s.Require().NoError(err)
	s.Len(delta.Documents.Extracted(), 4)
}

func (s *CoordinatorSuite) TestNewCoordinatorRequiresRegistry() {
	_, err := extraction.NewCoordinator(nil)
	s.Error(err)
}
