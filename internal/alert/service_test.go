package alert

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"homefinder/internal/alert/mocks"
	"homefinder/internal/config"
	"homefinder/internal/domain"
	"homefinder/internal/fetcher"
)

type AlertServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	subscribers *mocks.MockSubscriberStore
	searcher    *mocks.MockSearcher
	differ      *mocks.MockDiffer
	publisher   *mocks.MockPublisher

	service *Service
	cfg     config.AlertsConfig
	logger  *slog.Logger
	now     time.Time
}

func (s *AlertServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.subscribers = mocks.NewMockSubscriberStore(s.ctrl)
	s.searcher = mocks.NewMockSearcher(s.ctrl)
	s.differ = mocks.NewMockDiffer(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.AlertsConfig{
		Interval:                 15 * time.Minute,
		RoundTimeout:             time.Minute,
		MaxConcurrentSubscribers: 2,
	}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.now = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	s.service = NewService(s.subscribers, s.searcher, s.differ, s.publisher, s.logger, s.cfg)
	s.service.now = func() time.Time { return s.now }
}

func (s *AlertServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestAlertServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AlertServiceTestSuite))
}

func listing(id string) domain.Listing {
	return domain.Listing{ID: id, Source: "Rightmove", URL: "https://r/" + id, Images: []string{}}
}

func result(listings ...domain.Listing) *domain.AggregationResult {
	return &domain.AggregationResult{
		Listings:   listings,
		Outcomes:   []domain.SourceOutcome{{Source: "Rightmove", Success: true, Listings: listings}},
		TotalFound: len(listings),
	}
}

func subscriber(id, name, location string) domain.Subscriber {
	return domain.Subscriber{ID: id, Name: name, SearchCriteria: domain.SearchQuery{Location: location}}
}

func (s *AlertServiceTestSuite) TestCheck_NewListingsProduceAlerts() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")
	bob := subscriber("c2", "Bob", "Leeds")

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice, bob}, nil)

	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(result(listing("a"), listing("b")), nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), bob.SearchCriteria).Return(result(listing("c")), nil)

	s.differ.EXPECT().Diff(gomock.Any(), "c1", []domain.Listing{listing("a"), listing("b")}).
		Return([]domain.Listing{listing("b")}, nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c2", []domain.Listing{listing("c")}).
		Return([]domain.Listing{listing("c")}, nil)

	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(2)

	resp, stats, err := s.service.Check(ctx)

	s.Require().NoError(err)
	s.Equal(2, resp.TotalAlerts)
	s.Equal(2, resp.TotalNewListings)
	s.Require().Len(resp.Alerts, 2)

	s.Equal("c1", resp.Alerts[0].ClientID)
	s.Equal("Alice", resp.Alerts[0].ClientName)
	s.Equal(1, resp.Alerts[0].TotalNew)
	s.Equal("b", resp.Alerts[0].NewListings[0].ID)
	s.Equal(s.now, resp.Alerts[0].Timestamp)
	s.Equal("c2", resp.Alerts[1].ClientID)
	s.Equal(resp.Alerts[0].Timestamp, resp.Alerts[1].Timestamp)

	s.Equal(2, stats.Subscribers)
	s.Equal(0, stats.Failed)
	s.Equal(2, stats.Published)
}

func (s *AlertServiceTestSuite) TestCheck_NoNewListings() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(result(listing("a")), nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c1", gomock.Any()).Return([]domain.Listing{}, nil)

	resp, stats, err := s.service.Check(ctx)

	s.Require().NoError(err)
	s.Equal(0, resp.TotalAlerts)
	s.NotNil(resp.Alerts)
	s.Empty(resp.Alerts)
	s.Equal(0, stats.Published)
}

func (s *AlertServiceTestSuite) TestCheck_SearchFailureLeavesSnapshot() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")
	bob := subscriber("c2", "Bob", "Leeds")

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice, bob}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(nil, errors.New("invalid query"))
	s.searcher.EXPECT().SearchAll(gomock.Any(), bob.SearchCriteria).Return(result(listing("c")), nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c2", gomock.Any()).Return([]domain.Listing{listing("c")}, nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	resp, stats, err := s.service.Check(ctx)

	s.Require().NoError(err)
	s.Equal(1, resp.TotalAlerts)
	s.Equal("c2", resp.Alerts[0].ClientID)
	s.Equal(1, stats.Failed)
}

func (s *AlertServiceTestSuite) TestCheck_AllSourcesFailedSkipsDiff() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")

	failed := &domain.AggregationResult{
		Listings: []domain.Listing{},
		Outcomes: []domain.SourceOutcome{
			{Source: "Rightmove", Error: "status 403"},
			{Source: "Zoopla", Error: "round deadline exceeded"},
		},
	}

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(failed, nil)

	resp, stats, err := s.service.Check(ctx)

	s.Require().NoError(err)
	s.Equal(0, resp.TotalAlerts)
	s.Equal(1, stats.Failed)
}

func (s *AlertServiceTestSuite) TestCheck_AllSourcesFailedResetsSnapshotWhenConfigured() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")

	cfg := s.cfg
	cfg.ResetSnapshotOnFailure = true
	service := NewService(s.subscribers, s.searcher, s.differ, s.publisher, s.logger, cfg)

	failed := &domain.AggregationResult{
		Listings: []domain.Listing{},
		Outcomes: []domain.SourceOutcome{{Source: "Rightmove", Error: "status 403"}},
	}

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(failed, nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c1", []domain.Listing{}).Return([]domain.Listing{}, nil)

	resp, stats, err := service.Check(ctx)

	s.Require().NoError(err)
	s.Equal(0, resp.TotalAlerts)
	s.Equal(1, stats.Failed)
}

func (s *AlertServiceTestSuite) TestCheck_UnnamedSubscriberGetsFallbackName() {
	ctx := context.Background()
	anon := subscriber("c9", "", "York")

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{anon}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), anon.SearchCriteria).Return(result(listing("a")), nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c9", gomock.Any()).Return([]domain.Listing{listing("a")}, nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil)

	resp, _, err := s.service.Check(ctx)

	s.Require().NoError(err)
	s.Require().Len(resp.Alerts, 1)
	s.Equal("Client c9", resp.Alerts[0].ClientName)
}

func (s *AlertServiceTestSuite) TestCheck_ConfigErrorAbortsRound() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")
	cfgErr := &fetcher.ConfigError{Setting: "SCRAPER_API_KEY", Reason: "proxy api key is not set"}

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(nil, cfgErr)

	resp, stats, err := s.service.Check(ctx)

	s.Nil(resp)
	s.Nil(stats)
	var ce *fetcher.ConfigError
	s.True(errors.As(err, &ce))
}

func (s *AlertServiceTestSuite) TestCheck_PublishErrorsCounted() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(result(listing("a")), nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c1", gomock.Any()).Return([]domain.Listing{listing("a")}, nil)
	s.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(errors.New("channel closed"))

	resp, stats, err := s.service.Check(ctx)

	s.Require().NoError(err)
	s.Equal(1, resp.TotalAlerts)
	s.Equal(0, stats.Published)
	s.Equal(1, stats.PublishErrors)
}

func (s *AlertServiceTestSuite) TestCheck_WithoutPublisher() {
	ctx := context.Background()
	alice := subscriber("c1", "Alice", "London")
	svc := NewService(s.subscribers, s.searcher, s.differ, nil, s.logger, s.cfg)

	s.subscribers.EXPECT().List(ctx).Return([]domain.Subscriber{alice}, nil)
	s.searcher.EXPECT().SearchAll(gomock.Any(), alice.SearchCriteria).Return(result(listing("a")), nil)
	s.differ.EXPECT().Diff(gomock.Any(), "c1", gomock.Any()).Return([]domain.Listing{listing("a")}, nil)

	resp, stats, err := svc.Check(ctx)

	s.Require().NoError(err)
	s.Equal(1, resp.TotalAlerts)
	s.Equal(0, stats.Published)
}

func (s *AlertServiceTestSuite) TestCheck_ListError() {
	ctx := context.Background()

	s.subscribers.EXPECT().List(ctx).Return(nil, errors.New("connection refused"))

	_, _, err := s.service.Check(ctx)

	s.Error(err)
	s.Contains(err.Error(), "list subscribers")
}
