package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Session is the capability shared by both arr flavours. Close releases
// idle connections; every call after Close fails with ErrChannel.
type Session interface {
	CommandStatus(ctx context.Context, commandID int64) (CommandStatus, error)
	Close() error
}

// EpisodeSource lists a series' episodes.
type EpisodeSource interface {
	GetEpisodes(ctx context.Context, seriesID int64) ([]Episode, error)
}

// MovieSource fetches a single movie.
type MovieSource interface {
	GetMovie(ctx context.Context, movieID int64) (*Movie, error)
}

// Open builds a session for kind and probes the instance. Any probe failure
// wraps ErrChannel.
func Open(ctx context.Context, kind Kind, cfg Config) (Session, error) {
	switch kind {
	case KindSonarr:
		return OpenSeries(ctx, cfg)
	case KindRadarr:
		return OpenMovies(ctx, cfg)
	default:
		return nil, fmt.Errorf("arr: unknown instance kind %q", kind)
	}
}

// SeriesClient is a Sonarr session.
type SeriesClient struct {
	*client
	status SystemStatus
}

// OpenSeries opens a Sonarr session.
func OpenSeries(ctx context.Context, cfg Config) (*SeriesClient, error) {
	c, status, err := openClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &SeriesClient{client: c, status: status}, nil
}

// MovieClient is a Radarr session.
type MovieClient struct {
	*client
	status SystemStatus
}

// OpenMovies opens a Radarr session.
func OpenMovies(ctx context.Context, cfg Config) (*MovieClient, error) {
	c, status, err := openClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &MovieClient{client: c, status: status}, nil
}

func openClient(ctx context.Context, cfg Config) (*client, SystemStatus, error) {
	c, err := newClient(cfg)
	if err != nil {
		return nil, SystemStatus{}, fmt.Errorf("%w: %w", ErrChannel, err)
	}
	var status SystemStatus
	if err := c.getJSON(ctx, systemStatusPath, nil, &status); err != nil {
		c.close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, SystemStatus{}, ctxErr
		}
		if errors.Is(err, ErrChannel) {
			return nil, SystemStatus{}, err
		}
		return nil, SystemStatus{}, fmt.Errorf("%w: probe %s: %w", ErrChannel, c.baseURL.Redacted(), err)
	}
	return c, status, nil
}

func commandStatus(ctx context.Context, c *client, commandID int64) (CommandStatus, error) {
	var status CommandStatus
	if err := c.getJSON(ctx, fmt.Sprintf(commandPathPattern, commandID), nil, &status); err != nil {
		return CommandStatus{}, err
	}
	return status, nil
}

// CommandStatus polls a submitted command.
func (s *SeriesClient) CommandStatus(ctx context.Context, commandID int64) (CommandStatus, error) {
	return commandStatus(ctx, s.client, commandID)
}

// GetEpisodes returns every episode of a series.
func (s *SeriesClient) GetEpisodes(ctx context.Context, seriesID int64) ([]Episode, error) {
	query := url.Values{}
	query.Set("seriesId", strconv.FormatInt(seriesID, 10))
	var episodes []Episode
	if err := s.getJSON(ctx, "/api/v3/episode", query, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// Version reports the version string from the acquisition probe.
func (s *SeriesClient) Version() string {
	return s.status.Version
}

// Close releases the session.
func (s *SeriesClient) Close() error {
	s.close()
	return nil
}

// CommandStatus polls a submitted command.
func (m *MovieClient) CommandStatus(ctx context.Context, commandID int64) (CommandStatus, error) {
	return commandStatus(ctx, m.client, commandID)
}

// GetMovie returns the movie, or nil when Radarr answers 404 or with a body
// that is not a JSON object.
func (m *MovieClient) GetMovie(ctx context.Context, movieID int64) (*Movie, error) {
	raw, err := m.get(ctx, "/api/v3/movie/"+strconv.FormatInt(movieID, 10), nil)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var movie Movie
	if err := json.Unmarshal(trimmed, &movie); err != nil {
		return nil, fmt.Errorf("arr: decode movie %d: %w", movieID, err)
	}
	return &movie, nil
}

// Version reports the version string from the acquisition probe.
func (m *MovieClient) Version() string {
	return m.status.Version
}

// Close releases the session.
func (m *MovieClient) Close() error {
	m.close()
	return nil
}
