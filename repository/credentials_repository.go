package repository

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/parkerpayne/bard/core/auth"
	"github.com/parkerpayne/bard/logger"
	"github.com/parkerpayne/bard/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrShortUsername      = errors.New("username must be at least 3 characters")
)

// CredentialsRepository 管理 auth.json 中的登录凭据
type CredentialsRepository interface {
	Verify(username, password string) bool
	Username() (string, error)
	Change(currentPassword, username, newPassword string) error
}

type fileCredentialsRepository struct {
	path string
	mu   sync.Mutex
}

// NewCredentialsRepository 文件不存在时以默认账号初始化
func NewCredentialsRepository(path, defaultUser, defaultPassword string) (CredentialsRepository, error) {
	r := &fileCredentialsRepository{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		hash, err := auth.HashPassword(defaultPassword)
		if err != nil {
			return nil, err
		}
		if err := writeJSON(path, model.Credentials{Username: defaultUser, Password: hash}); err != nil {
			return nil, fmt.Errorf("write credentials: %w", err)
		}
		logger.Info("已创建默认登录凭据", logger.String("username", defaultUser))
	}
	return r, nil
}

func (r *fileCredentialsRepository) load() (model.Credentials, error) {
	var c model.Credentials
	if err := readJSON(r.path, &c); err != nil {
		return c, fmt.Errorf("read credentials: %w", err)
	}
	return c, nil
}

func (r *fileCredentialsRepository) Verify(username, password string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.load()
	if err != nil {
		logger.Error("读取登录凭据失败", logger.ErrorField(err))
		return false
	}
	return c.Username == username && auth.VerifyPassword(password, c.Password)
}

func (r *fileCredentialsRepository) Username() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, err := r.load()
	return c.Username, err
}

// Change 校验当前密码后更新用户名和密码; username 为空时保持不变
func (r *fileCredentialsRepository) Change(currentPassword, username, newPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.load()
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(currentPassword, c.Password) {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}
	if username != "" {
		if len(username) < 3 {
			return ErrShortUsername
		}
		c.Username = username
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	c.Password = hash
	if err := writeJSON(r.path, c); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
