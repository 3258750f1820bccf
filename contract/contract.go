//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"github.com/efeurhobobullish/vcf-generator/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Document is a file attachment pushed through a Notifier.
type Document struct {
	FileName string
	Content  []byte
	Caption  string
}

// Notifier is the outbound message channel. Implementations must honour the
// context deadline; an exceeded deadline is a retryable failure.
type Notifier interface {
	SendText(ctx context.Context, destination string, message string) error
	SendDocument(ctx context.Context, destination string, document Document) error
}

// Deliverer is the delivery path the sweeper drives for each due session.
type Deliverer interface {
	DeliverIfDue(ctx context.Context, session domain.Session) error
}
