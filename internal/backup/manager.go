package backup

import (
	"compress/gzip"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Manager produces encrypted, compressed snapshots of the guest log
// database and enforces a retention window on the backup directory.
type Manager struct {
	db            *sql.DB
	backupDir     string
	encryptionKey []byte
	retentionDays int
}

// NewManager creates a new backup manager
func NewManager(db *sql.DB, backupDir string, encryptionKey string, retentionDays int) (*Manager, error) {
	// Passphrase is stretched to a 32-byte AES key
	keyHash := sha256.Sum256([]byte(encryptionKey))

	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Manager{
		db:            db,
		backupDir:     backupDir,
		encryptionKey: keyHash[:],
		retentionDays: retentionDays,
	}, nil
}

// CreateBackup snapshots the live database with VACUUM INTO, then encrypts
// and compresses the snapshot. The plaintext copy never outlives this call.
func (m *Manager) CreateBackup() (string, error) {
	timestamp := time.Now().Format("20060102_150405")
	snapshotPath := filepath.Join(m.backupDir, fmt.Sprintf("guestlog_%s.db", timestamp))

	if _, err := m.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", snapshotPath)); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}
	defer os.Remove(snapshotPath)

	backupPath := snapshotPath + ".enc.gz"
	if err := m.sealFile(snapshotPath, backupPath); err != nil {
		return "", fmt.Errorf("failed to encrypt backup: %w", err)
	}

	if err := os.Chmod(backupPath, 0600); err != nil {
		return "", fmt.Errorf("failed to set backup permissions: %w", err)
	}

	if err := m.writeChecksum(backupPath); err != nil {
		return "", fmt.Errorf("failed to write checksum: %w", err)
	}

	log.Printf("[backup] created %s", backupPath)
	return backupPath, nil
}

// sealFile encrypts src with AES-GCM and writes it gzip-compressed to dst
func (m *Manager) sealFile(srcPath, dstPath string) error {
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	block, err := aes.NewCipher(m.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	dstFile, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dstFile.Close()

	gzWriter := gzip.NewWriter(dstFile)
	defer gzWriter.Close()

	if _, err := gzWriter.Write(ciphertext); err != nil {
		return fmt.Errorf("failed to write backup data: %w", err)
	}

	return nil
}

func (m *Manager) writeChecksum(backupPath string) error {
	sum, err := fileChecksum(backupPath)
	if err != nil {
		return err
	}
	return os.WriteFile(backupPath+".sha256", []byte(sum), 0600)
}

// VerifyBackup recomputes the backup checksum and compares it against the
// stored sidecar file.
func (m *Manager) VerifyBackup(backupPath string) error {
	stored, err := os.ReadFile(backupPath + ".sha256")
	if err != nil {
		return fmt.Errorf("failed to read checksum file: %w", err)
	}

	current, err := fileChecksum(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}

	if current != strings.TrimSpace(string(stored)) {
		return fmt.Errorf("checksum mismatch: backup file may be corrupted")
	}

	return nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// CleanOldBackups removes backup files older than the retention window
func (m *Manager) CleanOldBackups() error {
	cutoff := time.Now().AddDate(0, 0, -m.retentionDays)

	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			path := filepath.Join(m.backupDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Printf("[backup] warning: failed to delete %s: %v", path, err)
				continue
			}
			deleted++
		}
	}

	if deleted > 0 {
		log.Printf("[backup] removed %d expired backup files", deleted)
	}

	return nil
}

// StartAutomatedBackups runs backups on a fixed interval until ctx is done
func (m *Manager) StartAutomatedBackups(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[backup] automated backups enabled (interval %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[backup] stopping automated backups")
			return
		case <-ticker.C:
			if _, err := m.CreateBackup(); err != nil {
				log.Printf("[backup] scheduled backup failed: %v", err)
			}
			if err := m.CleanOldBackups(); err != nil {
				log.Printf("[backup] cleanup failed: %v", err)
			}
		}
	}
}
