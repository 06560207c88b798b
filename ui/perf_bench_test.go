package ui

import (
	"math"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"instrumon/channel"
	"instrumon/downsample"
	"instrumon/render"
)

func sineSeries(n int) render.Series {
	points := make([]downsample.Point, n)
	for i := range points {
		points[i] = downsample.Point{X: float64(i), Y: math.Sin(float64(i) / 20)}
	}
	return render.Series{Channel: channel.RunTankPressure, Points: points, MinY: -1, MaxY: 1}
}

func BenchmarkPlotViewDraw(b *testing.B) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		b.Fatalf("init simulation screen: %v", err)
	}
	defer screen.Fini()

	p := newPlotView(channel.RunTankPressure, true)
	p.SetRect(0, 0, 200, 20)
	p.setSeries(sineSeries(400), 400)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Draw(screen)
	}
}

func BenchmarkFrameSchedulerFlush(b *testing.B) {
	f := newFrameScheduler(immediateQueue, 60, 50*time.Millisecond, nil)
	ids := []string{"frame", "status", "log"}
	callbacks := make([]func(), len(ids))
	for i := range callbacks {
		callbacks[i] = func() {}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j, id := range ids {
			f.Schedule(id, callbacks[j])
		}
		f.flush()
	}
}
