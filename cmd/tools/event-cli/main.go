// event-cli читает события мира из NATS JetStream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/tileworld/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		url        = flag.String("url", nats.DefaultURL, "адрес NATS")
		stream     = flag.String("stream", "TILEWORLD", "имя стрима JetStream")
		command    = flag.String("cmd", "tail", "команда: tail, stats")
		eventTypes = flag.String("types", "", "фильтр типов событий (через запятую)")
		since      = flag.String("since", "1h", "начало окна: длительность (1h, 30m, 1d) или время RFC3339")
		limit      = flag.Int("limit", 100, "максимум событий для tail")
		follow     = flag.Bool("follow", false, "ждать новые события (как tail -f)")
	)
	flag.Parse()

	start, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Неверное значение -since: %v", err)
	}

	nc, err := nats.Connect(*url, nats.Name("tileworld-event-cli"))
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к NATS: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("❌ JetStream недоступен: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := &streamReader{
		js:     js,
		stream: *stream,
		types:  parseStringList(*eventTypes),
		start:  start,
	}

	switch *command {
	case "tail":
		err = reader.tail(ctx, *limit, *follow)
	case "stats":
		err = reader.stats(ctx)
	default:
		fmt.Printf("❌ Неизвестная команда: %s\n", *command)
		fmt.Println("Доступные команды: tail, stats")
		os.Exit(1)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("❌ %s: %v", *command, err)
	}
}

// streamReader читает стрим упорядоченным эфемерным consumer'ом начиная с start
type streamReader struct {
	js     nats.JetStreamContext
	stream string
	types  []string
	start  time.Time
}

// idleTimeout без follow чтение заканчивается, когда стрим молчит столько времени
const idleTimeout = time.Second

func (r *streamReader) each(ctx context.Context, follow bool, fn func(ev *eventbus.Envelope) bool) error {
	subject := eventbus.SubjectPrefix + ".*"
	if len(r.types) == 1 {
		subject = eventbus.Subject(r.types[0])
	}

	sub, err := r.js.SubscribeSync(subject,
		nats.BindStream(r.stream),
		nats.OrderedConsumer(),
		nats.StartTime(r.start),
	)
	if err != nil {
		return fmt.Errorf("подписка на %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	for {
		wait := idleTimeout
		if follow {
			wait = time.Hour
		}
		msgCtx, cancel := context.WithTimeout(ctx, wait)
		msg, err := sub.NextMsgWithContext(msgCtx)
		cancel()
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			if follow {
				continue
			}
			return nil
		default:
			return err
		}

		var ev eventbus.Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			fmt.Printf("⚠️  пропущено сообщение %s: %v\n", msg.Subject, err)
			continue
		}
		if !matchTypes(&ev, r.types) {
			continue
		}
		if !fn(&ev) {
			return nil
		}
	}
}

func (r *streamReader) tail(ctx context.Context, limit int, follow bool) error {
	fmt.Printf("🎬 События с %s (limit: %d, follow: %v)\n", r.start.UTC().Format(timeFormat), limit, follow)
	count := 0
	err := r.each(ctx, follow, func(ev *eventbus.Envelope) bool {
		fmt.Println(formatEvent(ev))
		count++
		return follow || limit <= 0 || count < limit
	})
	fmt.Printf("\n📊 Всего событий: %d\n", count)
	return err
}

func (r *streamReader) stats(ctx context.Context) error {
	counts := make(map[string]int)
	total := 0
	err := r.each(ctx, false, func(ev *eventbus.Envelope) bool {
		counts[ev.EventType]++
		total++
		return true
	})
	if err != nil {
		return err
	}

	fmt.Printf("Период: %s - %s\n", r.start.UTC().Format(timeFormat), time.Now().UTC().Format(timeFormat))
	fmt.Printf("Всего событий: %d\n", total)
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, counts[t])
	}
	return nil
}
