package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dougsko/automagic/pkg/civ"
	"github.com/dougsko/automagic/pkg/engine"
	"github.com/dougsko/automagic/pkg/hardware"
	"github.com/dougsko/automagic/pkg/storage"
	"github.com/gin-gonic/gin"
)

func (d *Daemon) registerRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/status", d.handleGetStatus)
		api.GET("/settings", d.handleGetSettings)
		api.PUT("/edges", d.handleSetEdges)
		api.POST("/zoom", d.handleZoom)
		api.POST("/bandmode", d.handleBandMode)
		api.PUT("/reflevel", d.handleSetRefLevel)
		api.PUT("/power", d.handleSetPower)
		api.POST("/barefoot", d.handleToggleBarefoot)
		api.PUT("/window", d.handleSetWindow)
		api.GET("/radios", d.handleGetRadios)
		api.GET("/serial-devices", d.handleGetSerialDevices)
		api.POST("/serial/reset", d.handleResetSerial)
	}

	router.GET("/ws", d.handleWebSocket)
}

// errorStatus maps engine errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoRadioInfo):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidEdges), errors.Is(err, engine.ErrInvalidInput),
		errors.Is(err, engine.ErrUnknownBand):
		return http.StatusBadRequest
	default:
		// The state changed but the radio did not get every frame.
		return http.StatusBadGateway
	}
}

// respond reports the outcome of an engine action together with the
// resulting state
func (d *Daemon) respond(c *gin.Context, err error) {
	if err != nil {
		c.JSON(errorStatus(err), gin.H{
			"error":  err.Error(),
			"status": d.engine.Snapshot(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": d.engine.Snapshot()})
}

// handleGetStatus returns the engine state and the serial port state
func (d *Daemon) handleGetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
		"status":  d.engine.Snapshot(),
		"serial":  d.ports.Status(),
	})
}

// handleGetSettings returns the whole band/mode settings table
func (d *Daemon) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings": d.engine.Settings(),
	})
}

// handleSetEdges stores new scope edges for the current band and mode.
// Edges are taken as typed so non-numeric input is rejected by the engine.
func (d *Daemon) handleSetEdges(c *gin.Context) {
	var req struct {
		Lower string `json:"lower" binding:"required"`
		Upper string `json:"upper" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.respond(c, d.engine.OnUserEditEdgesText(req.Lower, req.Upper))
}

func (d *Daemon) handleZoom(c *gin.Context) {
	d.respond(c, d.engine.OnToggleZoomIn())
}

func (d *Daemon) handleBandMode(c *gin.Context) {
	d.respond(c, d.engine.OnBandModeButton())
}

// handleSetRefLevel sets the reference level in dB
func (d *Daemon) handleSetRefLevel(c *gin.Context) {
	var req struct {
		Level *int `json:"level" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.respond(c, d.engine.OnUserEditRefLevel(*req.Level))
}

// handleSetPower sets the power ceiling in percent
func (d *Daemon) handleSetPower(c *gin.Context) {
	var req struct {
		Percent *int `json:"percent" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.respond(c, d.engine.OnUserEditPowerLevel(*req.Percent))
}

func (d *Daemon) handleToggleBarefoot(c *gin.Context) {
	d.respond(c, d.engine.OnToggleBarefoot())
}

// handleSetWindow persists the position of the operator's control window
func (d *Daemon) handleSetWindow(c *gin.Context) {
	var req struct {
		Top  *int `json:"top" binding:"required"`
		Left *int `json:"left" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d.store.SetInt(storage.KeyTop, *req.Top)
	d.store.SetInt(storage.KeyLeft, *req.Left)

	c.JSON(http.StatusOK, gin.H{
		"top":  d.store.GetInt(storage.KeyTop, 0),
		"left": d.store.GetInt(storage.KeyLeft, 0),
	})
}

// handleGetRadios lists the radio models and their default CI-V addresses
func (d *Daemon) handleGetRadios(c *gin.Context) {
	type radio struct {
		Model   string `json:"model"`
		Address string `json:"address"`
	}

	radios := []radio{}
	for _, model := range civ.Models() {
		addr, _ := civ.AddressForModel(model)
		radios = append(radios, radio{Model: model, Address: fmt.Sprintf("0x%02X", addr)})
	}

	cfg := d.currentConfig()
	c.JSON(http.StatusOK, gin.H{
		"radios":   radios,
		"selected": cfg.Radio.Model,
	})
}

// handleGetSerialDevices returns available serial/USB devices
func (d *Daemon) handleGetSerialDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"serial_devices": hardware.SerialDevices(),
	})
}

// handleResetSerial closes and reopens the configured serial port
func (d *Daemon) handleResetSerial(c *gin.Context) {
	err := d.ports.Reset(portConfig(d.currentConfig()))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"serial": d.ports.Status(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"serial": d.ports.Status(),
	})
}
