package dutycycle

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/dutycycle-logger/internal/sleepstore"
)

// enterSleep runs on its own goroutine once the boot's work is done.
// The timestamp is saved last so it marks the actual sleep entry.
func (c *Controller) enterSleep(ctx context.Context) error {
	if c.cfg.GracePeriod > 0 {
		t := time.NewTimer(c.cfg.GracePeriod)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	if c.cfg.IsolatePins {
		if err := c.deps.Platform.IsolatePins(); err != nil {
			log.Printf("dutycycle: isolate pins: %v", err)
		}
	}

	ts := sleepstore.FromTime(c.deps.Now())
	if err := c.deps.Store.Save(ts); err != nil {
		return fmt.Errorf("save sleep timestamp: %w", err)
	}

	c.publishStatus("SLEEP", "")
	// The process is replaced on wake, so nothing after DeepSleep runs.
	if err := c.deps.Publisher.Close(); err != nil {
		log.Printf("dutycycle: close publisher: %v", err)
	}

	log.Printf("dutycycle: entering deep sleep for %v", c.cfg.TimerPeriod)
	if err := c.deps.Platform.DeepSleep(); err != nil {
		return fmt.Errorf("enter deep sleep: %w", err)
	}
	return nil
}
