package daemon

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bhairab0311/LMSYSTEM/internal/constants"
	"github.com/bhairab0311/LMSYSTEM/internal/mailer"
	"github.com/bhairab0311/LMSYSTEM/internal/models"
	"github.com/bhairab0311/LMSYSTEM/internal/utils"
)

// OverdueNotifier periodically emails borrowers whose books are more than a
// day past due and have not been reminded yet. Delivery is at-least-once:
// the reminder goes out before the notified flag is persisted, so a crash
// between the two repeats the email on the next sweep.
type OverdueNotifier struct {
	BorrowCol   *mongo.Collection
	Mailer      mailer.Mailer
	AuditLogger utils.Logger
	Interval    time.Duration

	stop chan struct{}
	done chan struct{}
}

func (n *OverdueNotifier) Start() {
	n.stop = make(chan struct{})
	n.done = make(chan struct{})

	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := n.Sweep(context.Background()); err != nil {
					log.Println("Overdue sweep failed:", err)
				}
			case <-n.stop:
				return
			}
		}
	}()
}

func (n *OverdueNotifier) Stop() {
	close(n.stop)
	<-n.done
}

// Sweep runs one pass over the ledger. Send failures skip the record and
// leave it unnotified for the next tick.
func (n *OverdueNotifier) Sweep(ctx context.Context) error {
	cutoff := time.Now().Add(-24 * time.Hour)

	cursor, err := n.BorrowCol.Find(ctx, bson.M{
		"due_date":    bson.M{"$lt": cutoff},
		"return_date": nil,
		"notified":    false,
	})
	if err != nil {
		return err
	}

	var records []models.Borrow
	if err := cursor.All(ctx, &records); err != nil {
		return err
	}

	for _, record := range records {
		if record.User.Email == "" {
			continue
		}
		if err := n.Mailer.Send(ctx, mailer.OverdueReminderEmail(record.User.Email, record.User.Name)); err != nil {
			log.Printf("Reminder to %s failed: %v", record.User.Email, err)
			continue
		}
		if _, err := n.BorrowCol.UpdateByID(ctx, record.ID, bson.M{"$set": bson.M{"notified": true}}); err != nil {
			log.Printf("Marking record %s notified failed: %v", record.ID.Hex(), err)
			continue
		}
		n.AuditLogger.Log(ctx, models.BorrowEntity, constants.Notify, "system", record.ID.Hex())
		log.Println("Reminder sent to", record.User.Email)
	}
	return nil
}
