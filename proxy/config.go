/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package proxy

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/nabbar/golib/size"
)

// FrontendSpec and BackendSpec are the mapstructure shape configuration
// is decoded into, kept separate from Frontend/Backend so the live
// objects (holding an *lb.Core, connection counters, ...) never get
// silently reset by a reload.

type FrontendSpec struct {
	Name      string   `mapstructure:"name"`
	Listen    []string `mapstructure:"listen"`
	MaxConn   int64    `mapstructure:"maxconn"`
	RateLimit int      `mapstructure:"rate_limit"`
	Default   string   `mapstructure:"default_backend"`
}

type ServerSpec struct {
	Name     string `mapstructure:"name"`
	Addr     string `mapstructure:"addr"`
	Port     int    `mapstructure:"port"`
	Weight   uint32 `mapstructure:"weight"`
	Backup   bool   `mapstructure:"backup"`
	MaxConn  int64  `mapstructure:"maxconn"`
	Disabled bool   `mapstructure:"disabled"`
}

type BackendSpec struct {
	Name      string       `mapstructure:"name"`
	Algorithm string       `mapstructure:"algorithm"`
	FullConn  int64        `mapstructure:"fullconn"`
	WDiv      uint32       `mapstructure:"wdiv"`
	Buffer    size.Size    `mapstructure:"buffer_size"`
	Servers   []ServerSpec `mapstructure:"servers"`
}

type Spec struct {
	Frontends []FrontendSpec `mapstructure:"frontends"`
	Backends  []BackendSpec  `mapstructure:"backends"`
}

// DecoderConfigOption registers size.Size's decode hook so buffer_size
// fields accept human-readable strings ("64KiB") in configuration files,
// the same hook size ships specifically for viper integration.
func DecoderConfigOption(c *mapstructure.DecoderConfig) {
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		size.ViperDecoderHook(),
		c.DecodeHook,
	)
}

// Load reads frontends/backends out of v and builds the live model.
func Load(v *viper.Viper) ([]*Frontend, []*Backend, error) {
	var spec Spec
	if err := v.Unmarshal(&spec, DecoderConfigOption); err != nil {
		return nil, nil, fmt.Errorf("proxy: decoding configuration: %w", err)
	}

	backends := make([]*Backend, 0, len(spec.Backends))
	byName := make(map[string]*Backend, len(spec.Backends))
	for _, bs := range spec.Backends {
		b := NewBackend(bs.Name, Algorithm(bs.Algorithm))
		b.FullConn = bs.FullConn
		if bs.WDiv > 0 {
			b.WDiv = bs.WDiv
		}
		b.BufferSize = bs.Buffer
		for _, ss := range bs.Servers {
			if _, err := b.AddServer(ServerConfig{
				Name: ss.Name, Addr: ss.Addr, Port: ss.Port,
				Weight: ss.Weight, Backup: ss.Backup,
				MaxConn: ss.MaxConn, Disabled: ss.Disabled,
			}); err != nil {
				return nil, nil, fmt.Errorf("proxy: backend %q server %q: %w", bs.Name, ss.Name, err)
			}
		}
		backends = append(backends, b)
		byName[b.Name] = b
	}

	frontends := make([]*Frontend, 0, len(spec.Frontends))
	for _, fs := range spec.Frontends {
		f := &Frontend{Name: fs.Name, MaxConn: fs.MaxConn, RateLimit: fs.RateLimit, DefaultBack: fs.Default}
		for _, l := range fs.Listen {
			f.Listeners = append(f.Listeners, Listener{Addr: l, State: ListenerInit})
		}
		if f.DefaultBack != "" {
			if _, ok := byName[f.DefaultBack]; !ok {
				return nil, nil, fmt.Errorf("proxy: frontend %q default_backend %q not found", f.Name, f.DefaultBack)
			}
		}
		frontends = append(frontends, f)
	}

	return frontends, backends, nil
}
