package preview

import (
	"context"
	"strings"
	"sync"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/logger"
)

const maxConcurrentHandlers = 16

// Dispatcher consumes inbound messages from the bus, scans them against the
// registry and runs the matched handler. Matching is sequential; handlers run
// in their own goroutines so a slow platform API never stalls other messages.
type Dispatcher struct {
	bus       *bus.MessageBus
	registry  *Registry
	handleWG  sync.WaitGroup
	handleSem chan struct{}
}

func NewDispatcher(b *bus.MessageBus, registry *Registry) *Dispatcher {
	return &Dispatcher{
		bus:       b,
		registry:  registry,
		handleSem: make(chan struct{}, maxConcurrentHandlers),
	}
}

// Run blocks until ctx is canceled or the bus closes, then waits for all
// in-flight handlers to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	logger.InfoCF("dispatch", "Dispatch loop started", map[string]interface{}{
		"platforms": strings.Join(d.registry.Platforms(), ","),
	})

	for {
		msg, ok := d.bus.ConsumeInbound(ctx)
		if !ok {
			break
		}

		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}

		entry, match := d.registry.Match(text)
		if entry == nil {
			continue
		}

		logger.DebugCF("dispatch", "Link matched", map[string]interface{}{
			logger.FieldChannel:  msg.Channel,
			logger.FieldChatID:   msg.ChatID,
			logger.FieldPlatform: entry.Platform,
		})

		d.handleSem <- struct{}{}
		d.handleWG.Add(1)
		go func(msg bus.InboundMessage, entry *Entry, match []string) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorCF("dispatch", "Handler panicked", map[string]interface{}{
						logger.FieldPlatform: entry.Platform,
						logger.FieldError:    r,
					})
					d.sendReply(msg, entry.ErrorReply, "")
				}
				<-d.handleSem
				d.handleWG.Done()
			}()
			d.handleMatch(ctx, msg, entry, match)
		}(msg, entry, match)
	}

	d.handleWG.Wait()
	logger.InfoC("dispatch", "Dispatch loop stopped")
}

func (d *Dispatcher) handleMatch(ctx context.Context, msg bus.InboundMessage, entry *Entry, match []string) {
	reply, err := entry.Handle(ctx, match)
	if err != nil {
		// Shutdown cancellation abandons the fetch without a partial reply.
		if ctx.Err() != nil {
			return
		}
		logger.WarnCF("dispatch", "Handler failed", map[string]interface{}{
			logger.FieldPlatform: entry.Platform,
			logger.FieldChannel:  msg.Channel,
			logger.FieldError:    err.Error(),
		})
		d.sendReply(msg, entry.ErrorReply, "")
		return
	}

	d.sendReply(msg, reply.Text, reply.ImageURL)
	logger.InfoCF("dispatch", "Preview sent", map[string]interface{}{
		logger.FieldPlatform: entry.Platform,
		logger.FieldChannel:  msg.Channel,
		logger.FieldChatID:   msg.ChatID,
	})
}

func (d *Dispatcher) sendReply(msg bus.InboundMessage, text, imageURL string) {
	d.bus.PublishOutbound(bus.OutboundMessage{
		Channel:  msg.Channel,
		ChatID:   msg.ChatID,
		Content:  text,
		ImageURL: imageURL,
	})
}
