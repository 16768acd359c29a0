package phase

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCanProcess_TrueWhileProcessing(t *testing.T) {
	c := New(20)
	if !c.CanProcess(context.Background(), time.Second) {
		t.Fatal("expected CanProcess to succeed in initial PROCESSING phase")
	}
}

func TestOnProcessed_SwitchesToUploadingAtBatchSize(t *testing.T) {
	c := New(3)
	for i := 0; i < 2; i++ {
		c.OnProcessed()
	}
	p, inBatch, _ := c.Snapshot()
	if p != Processing || inBatch != 2 {
		t.Fatalf("expected still processing with inBatch=2, got phase=%v inBatch=%d", p, inBatch)
	}

	c.OnProcessed()
	p, inBatch, _ = c.Snapshot()
	if p != Uploading || inBatch != 3 {
		t.Fatalf("expected uploading with inBatch=3, got phase=%v inBatch=%d", p, inBatch)
	}
}

func TestFlushIfIdle_ForcesUploadOnPartialBatch(t *testing.T) {
	c := New(20)
	c.OnProcessed()
	c.OnProcessed()
	c.FlushIfIdle()
	p, _, _ := c.Snapshot()
	if p != Uploading {
		t.Fatalf("expected FlushIfIdle to force UPLOADING, got %v", p)
	}
}

func TestFlushIfIdle_NoOpWhenBatchEmpty(t *testing.T) {
	c := New(20)
	c.FlushIfIdle()
	p, _, _ := c.Snapshot()
	if p != Processing {
		t.Fatalf("expected FlushIfIdle to be a no-op on an empty batch, got %v", p)
	}
}

func TestOnUploadsComplete_ResetsAndSwitchesBack(t *testing.T) {
	c := New(2)
	c.OnProcessed()
	c.OnProcessed()
	c.OnUploadsComplete()

	p, inBatch, batchesDone := c.Snapshot()
	if p != Processing || inBatch != 0 || batchesDone != 1 {
		t.Fatalf("expected reset to processing/0/1, got phase=%v inBatch=%d batchesDone=%d", p, inBatch, batchesDone)
	}
}

func TestShouldUpload_BlocksUntilSwitch(t *testing.T) {
	c := New(1)
	var wg sync.WaitGroup
	wg.Add(1)
	ok := false
	go func() {
		defer wg.Done()
		ok = c.ShouldUpload(context.Background(), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	c.OnProcessed()
	wg.Wait()

	if !ok {
		t.Fatal("expected ShouldUpload to unblock once the coordinator switched to UPLOADING")
	}
}

func TestCanProcess_TimesOutDuringUploading(t *testing.T) {
	c := New(1)
	c.OnProcessed()
	if c.CanProcess(context.Background(), 30*time.Millisecond) {
		t.Fatal("expected CanProcess to time out while UPLOADING")
	}
}

func TestWaitForPhase_HonorsContextCancellation(t *testing.T) {
	c := New(1)
	c.OnProcessed()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if c.CanProcess(ctx, time.Second) {
		t.Fatal("expected CanProcess to return false for an already-canceled context")
	}
}
