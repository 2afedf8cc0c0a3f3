// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import "github.com/Thermoquad/dmmstat/pkg/ch9325"

// Observer receives loop events as they happen. Calls are made from the
// capture goroutine and must not block.
type Observer interface {
	PacketReceived(p ch9325.Packet)
	FrameDecoded(s Sample)
	Resync()
	ResyncLimit(streak int)
	Timeout()
	TransportError(err error)
}

// NopObserver implements Observer with no-ops. Embed it to implement a
// subset of the events.
type NopObserver struct{}

func (NopObserver) PacketReceived(ch9325.Packet) {}
func (NopObserver) FrameDecoded(Sample)          {}
func (NopObserver) Resync()                      {}
func (NopObserver) ResyncLimit(int)              {}
func (NopObserver) Timeout()                     {}
func (NopObserver) TransportError(error)         {}

// Observers fans events out to every element in order
type Observers []Observer

func (o Observers) PacketReceived(p ch9325.Packet) {
	for _, obs := range o {
		obs.PacketReceived(p)
	}
}

func (o Observers) FrameDecoded(s Sample) {
	for _, obs := range o {
		obs.FrameDecoded(s)
	}
}

func (o Observers) Resync() {
	for _, obs := range o {
		obs.Resync()
	}
}

func (o Observers) ResyncLimit(streak int) {
	for _, obs := range o {
		obs.ResyncLimit(streak)
	}
}

func (o Observers) Timeout() {
	for _, obs := range o {
		obs.Timeout()
	}
}

func (o Observers) TransportError(err error) {
	for _, obs := range o {
		obs.TransportError(err)
	}
}
