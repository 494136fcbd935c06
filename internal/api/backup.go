package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// @Title: Create Backup
// @Route: POST /api/backup
// @Description: Copy the snapshot database into the backups directory
// @Response: {"status": "ok", "path": "..."}
func (s *Service) HandleBackup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "Backups are not supported by this store")
		return
	}

	backupPath, err := s.backups.BackupCurrent(s.maxBackups)
	if err != nil {
		s.log.Error("failed to create backup", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to save backup")
		return
	}

	s.log.Info("created backup", zap.String("path", backupPath))
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"path":   backupPath,
	})
}

// @Title: List Backups
// @Route: GET /api/backups
// @Description: Backup files, oldest first
// @Response: Array of file names
func (s *Service) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "Backups are not supported by this store")
		return
	}
	paths, err := s.backups.Backups()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list backups: %v", err))
		return
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	s.writeJSON(w, http.StatusOK, names)
}

// @Title: Download Database
// @Route: GET /api/backup/download
// @Description: Download a consistent copy of the snapshot database
// @Response: application/octet-stream file download
func (s *Service) HandleBackupDownload(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		s.writeError(w, http.StatusNotImplemented, "Backups are not supported by this store")
		return
	}
	data, err := s.backups.ExportDatabase()
	if err != nil {
		s.log.Error("failed to export database", zap.Error(err))
		http.Error(w, "Failed to export database", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("oasis-ledger-%s.db", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(data)
	s.log.Info("served database download", zap.String("file", filename), zap.Int("bytes", len(data)))
}
