package visage

import "sync"

// frameNode is one link of the frame queue. It owns exactly
// one frame; detaching the node transfers that ownership to
// the caller.
type frameNode struct {
	frame *Frame
	next  *frameNode
}

// FrameQueue is a mutex-guarded FIFO of decoded frames. The
// producer appends at the tail, the consumer takes from the
// head; a single lock serializes the two. The queue is
// unbounded: the producer never waits, and a consumer that
// falls behind simply lets the queue grow.
type FrameQueue struct {
	mu   sync.Mutex
	head *frameNode
}

// Append links a frame at the tail of the queue. The queue
// takes ownership of the frame until it is taken or purged.
func (queue *FrameQueue) Append(frame *Frame) {
	node := &frameNode{frame: frame}

	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.head == nil {
		queue.head = node
		return
	}

	cur := queue.head
	for cur.next != nil {
		cur = cur.next
	}

	cur.next = node
}

// TakeHead detaches and returns the oldest frame. It never
// blocks: an empty queue returns false, meaning the
// producer hasn't caught up yet, and the caller decides how
// to wait. The caller owns the returned frame.
func (queue *FrameQueue) TakeHead() (*Frame, bool) {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.head == nil {
		return nil, false
	}

	node := queue.head
	queue.head = node.next
	node.next = nil

	return node.frame, true
}

// purge closes every remaining frame and empties the queue.
func (queue *FrameQueue) purge() {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	for node := queue.head; node != nil; node = node.next {
		node.frame.Close()
	}

	queue.head = nil
}
