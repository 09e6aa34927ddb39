package feedback

import (
	"context"
	"fmt"

	"splintarr/internal/arr"
	"splintarr/internal/searchmeta"
)

// Classifier decides whether a completed command produced a file. It only
// returns an error for remote failures; every other outcome is a plain
// false.
type Classifier interface {
	Confirm(ctx context.Context, entry searchmeta.Entry) (bool, error)
}

// SeriesClassifier confirms episode searches against the series' episode
// list.
type SeriesClassifier struct {
	Episodes arr.EpisodeSource
}

// Confirm reports whether the searched episode now has a file.
func (c SeriesClassifier) Confirm(ctx context.Context, entry searchmeta.Entry) (bool, error) {
	seriesID, itemID := positive(entry.SeriesID), positive(entry.ItemID)
	if seriesID == 0 || itemID == 0 {
		return false, nil
	}
	episodes, err := c.Episodes.GetEpisodes(ctx, seriesID)
	if err != nil {
		return false, fmt.Errorf("list episodes for series %d: %w", seriesID, err)
	}
	for _, ep := range episodes {
		if ep.ID == itemID && ep.HasFile {
			return true, nil
		}
	}
	return false, nil
}

// MovieClassifier confirms movie searches against the movie resource.
type MovieClassifier struct {
	Movies arr.MovieSource
}

// Confirm reports whether the searched movie now has a file.
func (c MovieClassifier) Confirm(ctx context.Context, entry searchmeta.Entry) (bool, error) {
	itemID := positive(entry.ItemID)
	if itemID == 0 {
		return false, nil
	}
	movie, err := c.Movies.GetMovie(ctx, itemID)
	if err != nil {
		return false, fmt.Errorf("get movie %d: %w", itemID, err)
	}
	return movie != nil && movie.HasFile, nil
}

// NewClassifier picks the classifier for kind. The session must provide the
// matching lookup capability.
func NewClassifier(kind arr.Kind, session arr.Session) (Classifier, error) {
	switch kind {
	case arr.KindSonarr:
		source, ok := session.(arr.EpisodeSource)
		if !ok {
			return nil, fmt.Errorf("sonarr session %T cannot list episodes", session)
		}
		return SeriesClassifier{Episodes: source}, nil
	case arr.KindRadarr:
		source, ok := session.(arr.MovieSource)
		if !ok {
			return nil, fmt.Errorf("radarr session %T cannot fetch movies", session)
		}
		return MovieClassifier{Movies: source}, nil
	default:
		return nil, fmt.Errorf("unknown instance kind %q", kind)
	}
}

func positive(v *int64) int64 {
	if v == nil || *v <= 0 {
		return 0
	}
	return *v
}
