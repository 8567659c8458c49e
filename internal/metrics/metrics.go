package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	MessagesReceived         atomic.Int64
	DecodeFailures           atomic.Int64
	DBWriteSuccess           atomic.Int64
	DBWriteFailures          atomic.Int64
	DBChannelDrops           atomic.Int64
	StateChannelDrops        atomic.Int64
	AlertChannelDrops        atomic.Int64
	WSFrameDrops             atomic.Int64
	NotificationsSent        atomic.Int64
	NotificationsSuppressed  atomic.Int64
	NotificationSendFailures atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "tracker_messages_received_total %d\n", MessagesReceived.Load())
	fmt.Fprintf(w, "tracker_decode_failures_total %d\n", DecodeFailures.Load())
	fmt.Fprintf(w, "tracker_db_write_success_total %d\n", DBWriteSuccess.Load())
	fmt.Fprintf(w, "tracker_db_write_failures_total %d\n", DBWriteFailures.Load())
	fmt.Fprintf(w, "tracker_db_channel_drops_total %d\n", DBChannelDrops.Load())
	fmt.Fprintf(w, "tracker_state_channel_drops_total %d\n", StateChannelDrops.Load())
	fmt.Fprintf(w, "tracker_alert_channel_drops_total %d\n", AlertChannelDrops.Load())
	fmt.Fprintf(w, "tracker_ws_frame_drops_total %d\n", WSFrameDrops.Load())
	fmt.Fprintf(w, "tracker_notifications_sent_total %d\n", NotificationsSent.Load())
	fmt.Fprintf(w, "tracker_notifications_suppressed_total %d\n", NotificationsSuppressed.Load())
	fmt.Fprintf(w, "tracker_notification_send_failures_total %d\n", NotificationSendFailures.Load())
}
