package service

import (
	"log"
	"sync"
	"time"

	"media-journal/internal/models"
	"media-journal/internal/repository"
	"media-journal/internal/timeutil"
)

const (
	staleAfter     = 30 * 24 * time.Hour
	batchSize      = 30
	itemDelay      = 60 * time.Second
	batchSleep     = time.Hour
	tvProvider     = "tmdb"
	serialProvider = "mal"
)

// ContentNotifier receives a push when the scheduler discovers new content
type ContentNotifier interface {
	NotifyNewContent(title string, kind models.MediaKind, count int) error
}

// Scheduler runs the two background refresh loops: one for episodic video
// (TMDB TV items) and one for serialized anime/manga (MAL items). Each loop
// starts at most once per process and runs until the process exits; there is
// no supervisor and no stop.
type Scheduler struct {
	itemRepo  *repository.MediaItemRepository
	refresher *RefreshService
	notifier  ContentNotifier // optional

	tvOnce     sync.Once
	serialOnce sync.Once

	// Pacing knobs, overridable in tests
	staleAfter time.Duration
	batchSize  int
	itemDelay  time.Duration
	batchSleep time.Duration
}

// NewScheduler creates a new Scheduler. notifier may be nil.
func NewScheduler(itemRepo *repository.MediaItemRepository, refresher *RefreshService, notifier ContentNotifier) *Scheduler {
	return &Scheduler{
		itemRepo:   itemRepo,
		refresher:  refresher,
		notifier:   notifier,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		itemDelay:  itemDelay,
		batchSleep: batchSleep,
	}
}

// StartTVLoop starts the episodic-video refresh loop. A second call is a no-op.
func (s *Scheduler) StartTVLoop() {
	s.tvOnce.Do(func() {
		go s.runTVLoop()
		log.Println("TV background refresh loop started")
	})
}

// StartSerialLoop starts the anime/manga refresh loop. A second call is a no-op.
func (s *Scheduler) StartSerialLoop() {
	s.serialOnce.Do(func() {
		go s.runSerialLoop()
		log.Println("Anime/manga background refresh loop started")
	})
}

func (s *Scheduler) runTVLoop() {
	for {
		batch, err := s.eligibleTV()
		if err != nil {
			log.Printf("TV refresh scan failed: %v", err)
		}

		for i := range batch {
			item := &batch[i]
			added, err := s.refresher.RefreshTVSeasons(item)
			if err != nil {
				log.Printf("TV refresh skipped for %s: %v", item.Title, err)
			} else if added {
				log.Printf("TV refresh: new season(s) for %s", item.Title)
				s.notify(item)
			}
			time.Sleep(s.itemDelay)
		}

		log.Println("TV refresh loop finished batch, pausing")
		time.Sleep(s.batchSleep)
	}
}

func (s *Scheduler) runSerialLoop() {
	for {
		batch, err := s.eligibleSerial()
		if err != nil {
			log.Printf("anime/manga refresh scan failed: %v", err)
		}

		for i := range batch {
			item := &batch[i]
			added, err := s.refresher.RefreshRelatedTitles(item)
			if err != nil {
				log.Printf("anime/manga refresh skipped for %s: %v", item.Title, err)
			} else if added {
				log.Printf("anime/manga refresh: new sequel(s) for %s", item.Title)
				s.notify(item)
			}
			time.Sleep(s.itemDelay)
		}

		log.Println("anime/manga refresh loop finished batch, pausing")
		time.Sleep(s.batchSleep)
	}
}

// eligibleTV returns the next batch of TV items due for a refresh: stale for
// more than the staleness window, capped at the batch size.
func (s *Scheduler) eligibleTV() ([]models.MediaItem, error) {
	cutoff := timeutil.Now().Add(-s.staleAfter)
	items, err := s.itemRepo.GetStaleCandidates(tvProvider, []models.MediaKind{models.KindTV}, cutoff)
	if err != nil {
		return nil, err
	}
	if len(items) > s.batchSize {
		items = items[:s.batchSize]
	}
	return items, nil
}

// eligibleSerial returns the next batch of anime/manga items due for a
// refresh. Items whose stored related titles already contain a sequel are
// excluded: once a sequel is known, polling this item again is redundant.
func (s *Scheduler) eligibleSerial() ([]models.MediaItem, error) {
	cutoff := timeutil.Now().Add(-s.staleAfter)
	candidates, err := s.itemRepo.GetStaleCandidates(serialProvider,
		[]models.MediaKind{models.KindAnime, models.KindManga}, cutoff)
	if err != nil {
		return nil, err
	}

	var eligible []models.MediaItem
	for _, item := range candidates {
		if item.HasSequel() {
			continue
		}
		eligible = append(eligible, item)
		if len(eligible) == s.batchSize {
			break
		}
	}
	return eligible, nil
}

func (s *Scheduler) notify(item *models.MediaItem) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyNewContent(item.Title, item.Kind, 1); err != nil {
		log.Printf("new-content notification failed for %s: %v", item.Title, err)
	}
}
