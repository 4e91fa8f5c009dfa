package dutycycle

import (
	"context"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/datalog"
	"github.com/sweeney/dutycycle-logger/internal/gpio"
)

// extract runs a data-extraction session. It ends when the dwell elapses,
// a Quit message arrives or ctx is cancelled. A zero dwell returns at once.
func (c *Controller) extract(ctx context.Context) error {
	if c.cfg.ExtractDwell <= 0 {
		log.Printf("dutycycle: no extraction dwell configured, going back to sleep")
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	q := NewQueue()
	c.startQuitButton(q)
	defer c.stopQuitButton()

	if c.cfg.MountPoint != "" {
		w := MountWatcher{Path: c.cfg.MountPoint, Interval: c.cfg.MountInterval, Probe: c.deps.Probe}
		go w.Run(ctx, q)
	}

	if c.deps.HTTP != nil {
		go func() {
			if err := c.deps.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("dutycycle: http server error: %v", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			if err := c.deps.HTTP.Shutdown(sctx); err != nil {
				log.Printf("dutycycle: shut down http server: %v", err)
			}
		}()
	}

	log.Printf("dutycycle: extraction session open for %v", c.cfg.ExtractDwell)
	c.publishStatus("EXTRACT_START", "")

	dwell := time.NewTimer(c.cfg.ExtractDwell)
	defer dwell.Stop()

	s := session{c: c}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-dwell.C:
			log.Printf("dutycycle: extraction dwell elapsed")
			c.publishStatus("EXTRACT_END", "dwell")
			return nil
		case m := <-q.Recv():
			if m.ID == Quit {
				log.Printf("dutycycle: quit requested, ending extraction session")
				c.publishStatus("EXTRACT_END", "quit")
				return nil
			}
			s.handle(m)
		}
		c.deps.Tracker.SetQueueDropped(q.Dropped())
	}
}

// session tracks the one removable drive an extraction session serves.
type session struct {
	c      *Controller
	device string
}

func (s *session) handle(m Message) {
	switch m.ID {
	case DeviceConnected:
		if s.device != "" {
			log.Printf("dutycycle: drive at %s ignored, %s already connected", m.MountPath, s.device)
			return
		}
		s.device = m.MountPath
		s.c.deps.Tracker.SetDrivePresent(true)
		s.export()
	case DeviceDisconnected:
		if m.MountPath != s.device {
			return
		}
		log.Printf("dutycycle: drive at %s released", s.device)
		s.device = ""
		s.c.deps.Tracker.SetDrivePresent(false)
	}
}

func (s *session) export() {
	id := s.c.deps.Resolver.DeviceID
	src := filepath.Join(s.c.deps.Resolver.Root, id)
	dst := filepath.Join(s.device, id)

	n, err := datalog.Export(src, dst)
	if err != nil {
		log.Printf("dutycycle: export to %s: %v", dst, err)
		return
	}
	log.Printf("dutycycle: exported %d files to %s", n, dst)
	s.c.deps.Tracker.ExportDone(n)
	s.c.publishStatus("EXPORT", dst)
}

func (c *Controller) startQuitButton(q *Queue) {
	if c.deps.Pins == nil || c.cfg.QuitPin < 0 {
		return
	}
	// Runs on the gpio event goroutine; TrySend never blocks.
	closer, err := c.deps.Pins.Watch(c.cfg.QuitPin, gpio.EdgeFalling, func(gpio.Event) {
		q.TrySend(Message{ID: Quit})
	})
	if err != nil {
		log.Printf("dutycycle: quit button on pin %d unavailable: %v", c.cfg.QuitPin, err)
		return
	}
	c.quit = closer
}

func (c *Controller) stopQuitButton() {
	if c.quit == nil {
		return
	}
	if err := c.quit.Close(); err != nil {
		log.Printf("dutycycle: release quit button: %v", err)
	}
	c.quit = nil
}
