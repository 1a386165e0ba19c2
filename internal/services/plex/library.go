package plex

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/amaumene/sweeparr/internal/models"
)

// sectionsContainer is the JSON response for /library/sections
type sectionsContainer struct {
	MediaContainer struct {
		Directory []struct {
			Key   string `json:"key"`
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"Directory"`
	} `json:"MediaContainer"`
}

// metadataContainer is the JSON response for item listings
type metadataContainer struct {
	MediaContainer struct {
		Metadata []metadata `json:"Metadata"`
	} `json:"MediaContainer"`
}

type metadata struct {
	RatingKey    string `json:"ratingKey"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Index        int    `json:"index"`
	ParentTitle  string `json:"parentTitle"`
	LastViewedAt int64  `json:"lastViewedAt"`
	ViewCount    int    `json:"viewCount"`
	Collection   []struct {
		Tag string `json:"tag"`
	} `json:"Collection"`
}

func (m *metadata) collections() []string {
	var names []string
	for _, c := range m.Collection {
		if c.Tag != "" {
			names = append(names, c.Tag)
		}
	}
	return names
}

func (m *metadata) lastViewed() *time.Time {
	if m.LastViewedAt == 0 {
		return nil
	}
	t := time.Unix(m.LastViewedAt, 0)
	return &t
}

// ListLibraries returns all movie and show library sections
func (c *Client) ListLibraries(ctx context.Context) ([]models.Library, error) {
	var container sectionsContainer
	if err := c.get(ctx, "/library/sections", nil, &container); err != nil {
		return nil, err
	}

	var libraries []models.Library
	for _, dir := range container.MediaContainer.Directory {
		if dir.Type == "movie" || dir.Type == "show" {
			libraries = append(libraries, models.Library{
				ID:    dir.Key,
				Title: dir.Title,
				Type:  dir.Type,
			})
		}
	}
	return libraries, nil
}

// ListItems returns the point-in-time snapshot of a library section: movies
// for movie sections, seasons for show sections. Season items aggregate the
// most recently watched episode and inherit show-level collections.
func (c *Client) ListItems(ctx context.Context, libraryID string) ([]models.LibraryItem, error) {
	libraries, err := c.ListLibraries(ctx)
	if err != nil {
		return nil, err
	}

	libraryType := ""
	for _, lib := range libraries {
		if lib.ID == libraryID {
			libraryType = lib.Type
			break
		}
	}
	if libraryType == "" {
		return nil, fmt.Errorf("plex library %q not found", libraryID)
	}

	var container metadataContainer
	path := fmt.Sprintf("/library/sections/%s/all", libraryID)
	if err := c.get(ctx, path, nil, &container); err != nil {
		return nil, err
	}

	if libraryType == "movie" {
		var items []models.LibraryItem
		for _, m := range container.MediaContainer.Metadata {
			items = append(items, models.LibraryItem{
				Key:           m.RatingKey,
				Type:          models.ItemTypeMovie,
				Title:         m.Title,
				LastEngagedAt: m.lastViewed(),
				Collections:   m.collections(),
			})
		}
		c.logger.WithField("count", len(items)).Debug("Plex movie snapshot built")
		return items, nil
	}

	// Show section: one item per season
	var items []models.LibraryItem
	for _, show := range container.MediaContainer.Metadata {
		seasons, err := c.seasonsOfShow(ctx, &show)
		if err != nil {
			return nil, err
		}
		items = append(items, seasons...)
	}
	c.logger.WithField("count", len(items)).Debug("Plex season snapshot built")
	return items, nil
}

// ListSeasons returns all seasons of one show, used by the executor to gate
// series-level deletion
func (c *Client) ListSeasons(ctx context.Context, showKey string) ([]models.LibraryItem, error) {
	var container metadataContainer
	path := fmt.Sprintf("/library/metadata/%s", showKey)
	if err := c.get(ctx, path, nil, &container); err != nil {
		return nil, err
	}
	if len(container.MediaContainer.Metadata) == 0 {
		return nil, fmt.Errorf("plex show %q not found", showKey)
	}
	show := container.MediaContainer.Metadata[0]
	return c.seasonsOfShow(ctx, &show)
}

func (c *Client) seasonsOfShow(ctx context.Context, show *metadata) ([]models.LibraryItem, error) {
	showCollections := show.collections()

	var seasonContainer metadataContainer
	path := fmt.Sprintf("/library/metadata/%s/children", show.RatingKey)
	if err := c.get(ctx, path, nil, &seasonContainer); err != nil {
		return nil, err
	}

	var items []models.LibraryItem
	for _, season := range seasonContainer.MediaContainer.Metadata {
		if season.Type != "season" {
			continue
		}
		item, err := c.seasonItem(ctx, show, &season, showCollections)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// seasonItem builds one season snapshot, aggregating watch state from the
// most recently watched episode
func (c *Client) seasonItem(ctx context.Context, show, season *metadata, showCollections []string) (models.LibraryItem, error) {
	var episodeContainer metadataContainer
	path := fmt.Sprintf("/library/metadata/%s/children", season.RatingKey)
	if err := c.get(ctx, path, nil, &episodeContainer); err != nil {
		return models.LibraryItem{}, err
	}

	item := models.LibraryItem{
		Key:          season.RatingKey,
		Type:         models.ItemTypeSeason,
		Title:        season.Title,
		ShowKey:      show.RatingKey,
		ShowTitle:    show.Title,
		SeasonNumber: season.Index,
		EpisodeCount: len(episodeContainer.MediaContainer.Metadata),
	}

	// A season is protected if either the show or the season itself is in
	// a collection
	item.Collections = append(item.Collections, showCollections...)
	item.Collections = append(item.Collections, season.collections()...)

	for _, episode := range episodeContainer.MediaContainer.Metadata {
		viewed := episode.lastViewed()
		if viewed == nil {
			continue
		}
		if item.LastEngagedAt == nil || viewed.After(*item.LastEngagedAt) {
			item.LastEngagedAt = viewed
			item.LastWatchedEpisodeTitle = episode.Title
			item.LastWatchedEpisodeNumber = episode.Index
		}
	}

	return item, nil
}

// AddToCollection tags an item with a collection
func (c *Client) AddToCollection(ctx context.Context, itemKey, name string) error {
	params := url.Values{}
	params.Set("collection[0].tag.tag", name)
	params.Set("collection.locked", "1")
	return c.send(ctx, "PUT", fmt.Sprintf("/library/metadata/%s", itemKey), params)
}

// RemoveFromCollection removes a collection tag from an item
func (c *Client) RemoveFromCollection(ctx context.Context, itemKey, name string) error {
	params := url.Values{}
	params.Set("collection[].tag.tag-", name)
	return c.send(ctx, "PUT", fmt.Sprintf("/library/metadata/%s", itemKey), params)
}

// SetTitle edits an item's title and locks the field so library refreshes
// keep it
func (c *Client) SetTitle(ctx context.Context, itemKey, title string) error {
	params := url.Values{}
	params.Set("title.value", title)
	params.Set("title.locked", "1")
	return c.send(ctx, "PUT", fmt.Sprintf("/library/metadata/%s", itemKey), params)
}

// ClearTitle unlocks the title so the library's original metadata returns
func (c *Client) ClearTitle(ctx context.Context, itemKey string) error {
	params := url.Values{}
	params.Set("title.locked", "0")
	return c.send(ctx, "PUT", fmt.Sprintf("/library/metadata/%s", itemKey), params)
}

// DeleteItem removes an item from the library
func (c *Client) DeleteItem(ctx context.Context, itemKey string) error {
	return c.send(ctx, "DELETE", fmt.Sprintf("/library/metadata/%s", itemKey), nil)
}
