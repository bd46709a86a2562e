// Package recon is the HTTP surface of the reconciliation engine: screen
// runs over multipart uploads, library logs, documents and program tools.
package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"Recon340B/api"
	"Recon340B/internal/config"
	"Recon340B/internal/library"
	"Recon340B/internal/logger"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const defaultPort = 8143

func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(api.RequestLogger, api.Recover)
	router.HandleFunc("/recon/health", Health).Methods("GET")
	router.HandleFunc("/recon/screens", h.ListScreens).Methods("GET")
	router.HandleFunc("/recon/screens/{screen}/run", h.RunScreen).Methods("POST")
	router.HandleFunc("/recon/library/{log}", h.GetLog).Methods("GET")
	router.HandleFunc("/recon/library/{log}", h.ImportLog).Methods("POST")
	router.HandleFunc("/recon/documents", h.UploadDocument).Methods("POST")
	router.HandleFunc("/recon/documents", h.ListDocuments).Methods("GET")
	router.HandleFunc("/recon/documents/latest", h.LatestDocument).Methods("GET")
	router.HandleFunc("/recon/changes", h.EvaluateChange).Methods("POST")
	router.HandleFunc("/recon/what-if", h.WhatIf).Methods("POST")
	router.HandleFunc("/recon/summary", h.Summary).Methods("GET")
	router.HandleFunc("/recon/audit-response", h.AuditResponse).Methods("POST")
	return router
}

type ReconService struct {
	config map[string]interface{}
	lib    *library.Service
	params config.Params
	server *http.Server
	addr   net.Addr
}

func NewReconService(cfg map[string]interface{}, lib *library.Service, params config.Params) *ReconService {
	return &ReconService{config: cfg, lib: lib, params: params}
}

func (s *ReconService) Name() string {
	return "recon"
}

func (s *ReconService) port() int {
	switch v := s.config["port"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return defaultPort
}

func (s *ReconService) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port()))
	if err != nil {
		return err
	}
	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:           NewRouter(NewHandler(s.lib, s.params)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Error("recon server stopped", zap.Error(err))
		}
	}()
	logger.Audit("recon service started", zap.String("addr", s.addr.String()))
	return nil
}

// Addr is the bound listen address once started.
func (s *ReconService) Addr() net.Addr {
	return s.addr
}

func (s *ReconService) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
