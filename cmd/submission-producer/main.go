// Command submission-producer replays random flag submissions onto the Kafka
// submission topic for load testing the scoring engine.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/ctf-scoreboard/internal/domain"
)

func main() {
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "flag-submissions", "Kafka topic")
	users := flag.Int("users", 100, "Submit as user ids 1..N")
	flagList := flag.String("flags", "CTF{hello}", "Flag tokens to draw from (comma-separated)")
	invalidPct := flag.Int("invalid", 20, "Percentage of submissions using a wrong flag")
	rate := flag.Int("rate", 100, "Submissions per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = until interrupted)")
	flag.Parse()

	if *users <= 0 || *rate <= 0 {
		log.Fatal("users and rate must be positive")
	}
	tokens := strings.Split(*flagList, ",")

	fmt.Printf("Producing to %s on %s: %d users, %d flags, %d/sec, %d%% invalid\n",
		*topic, *brokers, *users, len(tokens), *rate, *invalidPct)

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(strings.Split(*brokers, ","), config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	var sent, failed int64
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&sent, 1)
		}
	}()
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&failed, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	shutdown := func() {
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Done. Sent: %d, Errors: %d\n", atomic.LoadInt64(&sent), atomic.LoadInt64(&failed))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	for {
		select {
		case <-sigChan:
			shutdown()
			return

		case <-deadline:
			shutdown()
			return

		case <-ticker.C:
			submission := domain.FlagSubmission{
				UserID: domain.UserID(rand.Intn(*users) + 1),
				Flag:   tokens[rand.Intn(len(tokens))],
			}
			if rand.Intn(100) < *invalidPct {
				submission.Flag = fmt.Sprintf("CTF{wrong_%d}", rand.Int63())
			}

			data, err := json.Marshal(submission)
			if err != nil {
				log.Printf("Failed to marshal submission: %v", err)
				continue
			}
			producer.Input() <- &sarama.ProducerMessage{
				Topic: *topic,
				Key:   sarama.StringEncoder(strconv.FormatInt(int64(submission.UserID), 10)),
				Value: sarama.ByteEncoder(data),
			}

		case <-statsTicker.C:
			fmt.Printf("[%s] Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				atomic.LoadInt64(&sent),
				atomic.LoadInt64(&failed),
			)
		}
	}
}
