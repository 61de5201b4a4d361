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

package admin

import (
	"net/http"

	ginsdk "github.com/gin-gonic/gin"

	ginlib "github.com/nabbar/golib/context/gin"
	"github.com/nabbar/golib/logger"
)

const (
	registryKey = "admin.registry"
	gtxKey      = "admin.gtx"
)

// NewHTTPHandler builds the JSON admin surface spec.md §6 allows as an
// alternative to the Unix applet, under a stats URL the caller mounts it
// at (e.g. a Frontend's admin listener). Every request is wrapped in a
// ginlib.GinTonic so the registry travels through Gin's request-scoped,
// type-safe storage rather than a handler closure.
func NewHTTPHandler(reg *Registry, log logger.Logger) http.Handler {
	r := ginsdk.New()
	r.Use(ginsdk.Recovery())

	r.Use(func(c *ginsdk.Context) {
		gtx := ginlib.New(c, func() logger.Logger { return log })
		gtx.Set(registryKey, reg)
		c.Set(gtxKey, gtx)
		c.Next()
	})

	r.GET("/version", func(c *ginsdk.Context) {
		c.JSON(http.StatusOK, ginsdk.H{"version": Version})
	})

	r.POST("/pool/add", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		var req AddServerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ginsdk.H{"error": err.Error()})
			return
		}
		s, err := reg.PoolAdd(req)
		respond(c, s, err)
	})

	r.POST("/pool/disable", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		var ref ServerRef
		if err := c.ShouldBindJSON(&ref); err != nil {
			c.JSON(http.StatusBadRequest, ginsdk.H{"error": err.Error()})
			return
		}
		s, err := reg.PoolDisable(ref)
		respond(c, s, err)
	})

	r.POST("/pool/enable", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		var ref ServerRef
		if err := c.ShouldBindJSON(&ref); err != nil {
			c.JSON(http.StatusBadRequest, ginsdk.H{"error": err.Error()})
			return
		}
		s, err := reg.PoolEnable(ref)
		respond(c, s, err)
	})

	r.POST("/pool/weight", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		var req WeightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ginsdk.H{"error": err.Error()})
			return
		}
		s, err := reg.PoolWeight(req)
		respond(c, s, err)
	})

	r.GET("/pool/status", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		ref := ServerRef{Backend: c.Query("backend"), Server: c.Query("server")}
		s, err := reg.PoolStatus(ref)
		respond(c, s, err)
	})

	r.GET("/pool/contents/:backend", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		list, err := reg.PoolContents(c.Param("backend"))
		respond(c, list, err)
	})

	r.POST("/pool/remove", func(c *ginsdk.Context) {
		reg := registryFrom(c)
		var ref ServerRef
		if err := c.ShouldBindJSON(&ref); err != nil {
			c.JSON(http.StatusBadRequest, ginsdk.H{"error": err.Error()})
			return
		}
		removed, err := reg.PoolRemove(ref)
		if err != nil {
			c.JSON(http.StatusNotFound, ginsdk.H{"error": err.Error()})
			return
		}
		status := "quiesced"
		if removed {
			status = "removed"
		}
		c.JSON(http.StatusOK, ginsdk.H{"status": status})
	})

	return r
}

func registryFrom(c *ginsdk.Context) *Registry {
	v, _ := c.Get(gtxKey)
	gtx, ok := v.(ginlib.GinTonic)
	if !ok {
		return nil
	}
	reg, _ := gtx.Get(registryKey)
	r, _ := reg.(*Registry)
	return r
}

func respond(c *ginsdk.Context, payload any, err error) {
	if err != nil {
		c.JSON(http.StatusNotFound, ginsdk.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, payload)
}
