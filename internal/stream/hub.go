// Package stream pushes batch progress events to websocket subscribers,
// fanning out through redis when several API instances share a deployment.
package stream

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "batch:"
	channelSuffix  = ":progress"
	channelPattern = channelPrefix + "*" + channelSuffix
)

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	BatchID string
	Send    chan []byte
}

// NewHub delivers locally when redisClient is nil or the subscription cannot
// be established. Otherwise every payload goes through redis, including the
// ones for subscribers of this instance.
func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{clients: map[string]map[*Client]struct{}{}}
	if redisClient == nil {
		return h
	}

	ctx := context.Background()
	pubsub := redisClient.PSubscribe(ctx, channelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("redis subscribe error, using local fan-out: %v", err)
		_ = pubsub.Close()
		return h
	}
	h.redis = redisClient
	h.pubsub = pubsub
	go h.subscribeRedis(pubsub)
	return h
}

func (h *Hub) Register(batchID string) *Client {
	client := &Client{
		BatchID: batchID,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[batchID] == nil {
		h.clients[batchID] = map[*Client]struct{}{}
	}
	h.clients[batchID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	batchClients, ok := h.clients[client.BatchID]
	if !ok {
		return
	}
	if _, ok := batchClients[client]; !ok {
		return
	}
	delete(batchClients, client)
	if len(batchClients) == 0 {
		delete(h.clients, client.BatchID)
	}
	close(client.Send)
}

// Subscribers reports how many clients listen to batchID on this instance.
func (h *Hub) Subscribers(batchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[batchID])
}

func (h *Hub) Broadcast(batchID string, payload []byte) {
	h.mu.RLock()
	rdb := h.redis
	h.mu.RUnlock()

	if rdb != nil {
		err := rdb.Publish(context.Background(), redisChannel(batchID), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error: %v", err)
	}
	h.deliver(batchID, payload)
}

// Close stops the redis subscription. Local delivery keeps working.
func (h *Hub) Close() error {
	h.mu.Lock()
	pubsub := h.pubsub
	h.pubsub = nil
	h.redis = nil
	h.mu.Unlock()
	if pubsub == nil {
		return nil
	}
	return pubsub.Close()
}

func (h *Hub) deliver(batchID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[batchID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis(pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		batchID := batchIDFromChannel(msg.Channel)
		if batchID == "" {
			continue
		}
		h.deliver(batchID, []byte(msg.Payload))
	}
}

func redisChannel(batchID string) string {
	return channelPrefix + batchID + channelSuffix
}

func batchIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
