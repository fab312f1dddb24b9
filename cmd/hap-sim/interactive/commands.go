package interactive

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hapkit/hap-go/pkg/cache"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/homekit"
)

// resolveAccessory finds an accessory by UUID, display name or unique UUID
// prefix.
func (s *Sim) resolveAccessory(ref string) *hap.Accessory {
	if acc := s.env.HomeKit.Accessory(ref); acc != nil {
		return acc
	}

	var prefixed []*hap.Accessory
	for _, acc := range s.env.HomeKit.Accessories() {
		if strings.EqualFold(acc.DisplayName(), ref) {
			return acc
		}
		if strings.HasPrefix(acc.UUID(), ref) {
			prefixed = append(prefixed, acc)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0]
	}
	return nil
}

// resolve looks up <acc> <service[/subtype]> <char> from args.
func (s *Sim) resolve(args []string) (*hap.Characteristic, string, bool) {
	if len(args) < 3 {
		fmt.Fprintln(s.out, "Usage: <acc> <service[/subtype]> <char>")
		return nil, "", false
	}

	acc := s.resolveAccessory(args[0])
	if acc == nil {
		fmt.Fprintf(s.out, "Accessory not found: %s\n", args[0])
		return nil, "", false
	}

	svc := acc.FindService(args[1])
	if svc == nil {
		fmt.Fprintf(s.out, "Service not found: %s on %s\n", args[1], acc.DisplayName())
		return nil, "", false
	}

	c := svc.GetCharacteristic(args[2])
	if c == nil {
		fmt.Fprintf(s.out, "Characteristic not found: %s on %s\n", args[2], args[1])
		return nil, "", false
	}
	return c, homekit.RefreshKey(acc.UUID(), svc, c), true
}

// parseValue converts user input to the characteristic's format.
func parseValue(c *hap.Characteristic, raw string) (any, error) {
	f := c.Props().Format
	switch {
	case f == hap.FormatBool:
		switch strings.ToLower(raw) {
		case "on", "yes":
			return true, nil
		case "off", "no":
			return false, nil
		}
		return strconv.ParseBool(raw)
	case f.IsInteger():
		return strconv.Atoi(raw)
	case f == hap.FormatFloat:
		return strconv.ParseFloat(raw, 64)
	case f == hap.FormatString:
		return raw, nil
	default:
		return []byte(raw), nil
	}
}

func (s *Sim) cmdList() {
	accs := s.env.HomeKit.Accessories()
	if len(accs) == 0 {
		fmt.Fprintln(s.out, "No accessories")
		return
	}

	fmt.Fprintf(s.out, "\nAccessories (%d):\n", len(accs))
	fmt.Fprintln(s.out, "-------------------------------------------")
	for _, acc := range accs {
		fmt.Fprintf(s.out, "%s (%s)\n", acc.DisplayName(), acc.UUID())
		for _, svc := range acc.Services() {
			label := svc.Type()
			if !svc.IsPrimary() {
				label += "/" + svc.Subtype()
			}
			fmt.Fprintf(s.out, "  %s %q\n", label, svc.DisplayName())
			for _, c := range svc.Characteristics() {
				fmt.Fprintf(s.out, "    %-28s = %-10v (%s, %s)\n",
					c.Name(), c.Value(), c.Props().Format, c.Perms())
			}
		}
	}
}

func (s *Sim) cmdInfo() {
	hk := s.env.HomeKit
	fmt.Fprintln(s.out, "\nBridge:")
	fmt.Fprintln(s.out, "-------------------------------------------")
	fmt.Fprintf(s.out, "  Name:          %s\n", hk.Name())
	fmt.Fprintf(s.out, "  Controller ID: %s\n", hk.ControllerID())
	fmt.Fprintf(s.out, "  Device ID:     %s\n", hk.DeviceID())
	fmt.Fprintf(s.out, "  Paired:        %v\n", hk.IsPaired())
	fmt.Fprintf(s.out, "  Config number: %d\n", hk.ConfigNumber())
	fmt.Fprintf(s.out, "  Accessories:   %d\n", hk.Count())
	fmt.Fprintf(s.out, "  Virtual time:  %s\n", s.env.Clock.Now().Format(time.RFC3339Nano))
	fmt.Fprintf(s.out, "  TXT:           %s\n", strings.Join(hk.TXTRecords(), " "))
}

func (s *Sim) cmdGet(ctx context.Context, args []string) {
	c, key, ok := s.resolve(args)
	if !ok {
		return
	}

	var v any
	err := s.drive(func() error {
		var err error
		v, err = c.GetValue(ctx)
		return err
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s = %v\n", key, v)
}

func (s *Sim) cmdSet(ctx context.Context, args []string, update bool) {
	if len(args) < 4 {
		fmt.Fprintln(s.out, "Usage: set|update <acc> <service[/subtype]> <char> <value>")
		return
	}
	c, key, ok := s.resolve(args)
	if !ok {
		return
	}

	v, err := parseValue(c, strings.Join(args[3:], " "))
	if err != nil {
		fmt.Fprintf(s.out, "Invalid %s value: %v\n", c.Props().Format, err)
		return
	}

	if update {
		err = c.UpdateValue(v)
	} else {
		err = s.drive(func() error { return c.SetValue(ctx, v) })
	}
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "%s = %v\n", key, c.Value())
}

func (s *Sim) cmdSub(args []string) {
	c, key, ok := s.resolve(args)
	if !ok {
		return
	}
	sub, err := c.Subscribe()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	id := 1
	if n := len(s.subs); n > 0 {
		id = s.subs[n-1].id + 1
	}
	s.subs = append(s.subs, &subscription{id: id, label: key, sub: sub})
	fmt.Fprintf(s.out, "Subscribed #%d to %s\n", id, key)
}

func (s *Sim) lookupSub(args []string) *subscription {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: <id>")
		return nil
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		fmt.Fprintf(s.out, "Invalid subscription id: %s\n", args[0])
		return nil
	}
	for _, sub := range s.subs {
		if sub.id == id {
			return sub
		}
	}
	fmt.Fprintf(s.out, "No subscription #%d\n", id)
	return nil
}

func (s *Sim) cmdUnsub(args []string) {
	sub := s.lookupSub(args)
	if sub == nil {
		return
	}
	sub.sub.Unsubscribe()
	s.subs = slices.DeleteFunc(s.subs, func(x *subscription) bool { return x == sub })
	fmt.Fprintf(s.out, "Unsubscribed #%d\n", sub.id)
}

func (s *Sim) cmdWait(ctx context.Context, args []string) {
	sub := s.lookupSub(args)
	if sub == nil {
		return
	}
	timeout := time.Second
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(s.out, "Invalid timeout: %v\n", err)
			return
		}
		timeout = d
	}

	var ev hap.Event
	err := s.drive(func() error {
		var err error
		ev, err = sub.sub.WaitForNext(ctx, timeout)
		return err
	})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	s.printEvent(sub, ev)
}

func (s *Sim) cmdHistory(args []string) {
	sub := s.lookupSub(args)
	if sub == nil {
		return
	}
	events := sub.sub.History()
	if len(events) == 0 {
		fmt.Fprintf(s.out, "No events on #%d\n", sub.id)
		return
	}
	for _, ev := range events {
		s.printEvent(sub, ev)
	}
}

func (s *Sim) printEvent(sub *subscription, ev hap.Event) {
	fmt.Fprintf(s.out, "#%d %s: %v -> %v at %s\n",
		sub.id, sub.label, ev.OldValue, ev.NewValue, ev.Timestamp.Format(time.RFC3339Nano))
}

func (s *Sim) cmdAdvance(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: advance <duration>")
		return
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d < 0 {
		fmt.Fprintf(s.out, "Invalid duration: %s\n", args[0])
		return
	}
	fired := s.env.Clock.Advance(d)
	fmt.Fprintf(s.out, "Advanced %s (%d timers fired), now %s\n",
		d, fired, s.env.Clock.Now().Format(time.RFC3339Nano))
}

func (s *Sim) cmdNet(args []string) {
	n := s.env.Network
	if len(args) == 0 {
		cond := n.Conditions()
		stats := n.Stats()
		fmt.Fprintf(s.out, "Latency: %s  Loss: %.2f  Disconnected: %v\n",
			cond.Latency, cond.PacketLoss, cond.Disconnected)
		fmt.Fprintf(s.out, "Attempted: %d  Delivered: %d  Dropped: %d  Rejected: %d\n",
			stats.Attempted, stats.Delivered, stats.Dropped, stats.Rejected)
		return
	}

	switch strings.ToLower(args[0]) {
	case "latency":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: net latency <duration>")
			return
		}
		d, err := time.ParseDuration(args[1])
		if err != nil {
			fmt.Fprintf(s.out, "Invalid duration: %s\n", args[1])
			return
		}
		if err := n.SetLatency(d); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
	case "loss":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: net loss <0..1>")
			return
		}
		p, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid probability: %s\n", args[1])
			return
		}
		if err := n.SetPacketLoss(p); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			return
		}
	case "down":
		n.Disconnect()
	case "up":
		n.Reconnect()
	case "reset":
		n.Reset()
	default:
		fmt.Fprintf(s.out, "Unknown net command: %s\n", args[0])
		return
	}
	s.cmdNet(nil)
}

func (s *Sim) cmdPair(pair bool) {
	hk := s.env.HomeKit
	if pair {
		hk.Pair()
		fmt.Fprintln(s.out, "Paired")
	} else {
		hk.Unpair()
		fmt.Fprintln(s.out, "Unpaired")
	}

	if s.env.Advertiser != nil {
		if err := s.env.Advertiser.Advertise(hk); err != nil {
			fmt.Fprintf(s.out, "Failed to refresh advertisement: %v\n", err)
		}
	}
}

func (s *Sim) cmdRefresh(ctx context.Context) {
	var res *homekit.RefreshResult
	_ = s.drive(func() error {
		res = s.env.HomeKit.RefreshAll(ctx)
		return nil
	})

	keys := make([]string, 0, len(res.Values))
	for k := range res.Values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(s.out, "  %s = %v\n", k, res.Values[k])
	}
	if err := res.Err(); err != nil {
		fmt.Fprintf(s.out, "Failures (%d): %v\n", len(res.Failures), err)
	}
	fmt.Fprintf(s.out, "Read %d, failed %d, skipped %d\n", len(res.Values), len(res.Failures), res.Skipped)
}

func (s *Sim) cmdSave(args []string) {
	path := s.env.CachePath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		fmt.Fprintln(s.out, "No cache path (use -cache or save <path>)")
		return
	}
	if err := cache.Save(path, s.env.HomeKit.Accessories()); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Saved %d accessories to %s\n", s.env.HomeKit.Count(), path)
}
