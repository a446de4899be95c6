package main

import (
	"context"
	"flag"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcapi "voice-journal/internal/api/grpc"
)

func main() {
	addr := flag.String("addr", "localhost:50051", "journald gRPC address")
	listen := flag.Duration("listen", 3*time.Second, "how long to dictate before saving")
	flag.Parse()

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Println("Connected to server")

	client := grpcapi.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *listen+10*time.Second)
	defer cancel()

	watchCtx, stopWatch := context.WithCancel(ctx)
	stream, err := client.WatchState(watchCtx)
	if err != nil {
		log.Fatalf("failed to watch state: %v", err)
	}
	go func() {
		for {
			st, err := stream.Recv()
			if err != nil {
				return
			}
			log.Printf("phase=%s generation=%d final=%q interim=%q", st.Phase, st.Generation, st.FinalText, st.InterimText)
		}
	}()

	if _, err := client.StartListening(ctx); err != nil {
		log.Fatalf("failed to start listening: %v", err)
	}
	time.Sleep(*listen)

	st, err := client.StopListening(ctx)
	if err != nil {
		log.Fatalf("failed to stop listening: %v", err)
	}
	stopWatch()
	log.Printf("Transcript: %q", st.FinalText)

	entry, err := client.SaveEntry(ctx)
	if err != nil {
		log.Fatalf("failed to save entry: %v", err)
	}
	log.Printf("Saved entry: id=%s title=%q", entry.ID, entry.Title)

	entries, err := client.ListEntries(ctx)
	if err != nil {
		log.Fatalf("failed to list entries: %v", err)
	}
	log.Printf("Journal holds %d entries", len(entries))
}
