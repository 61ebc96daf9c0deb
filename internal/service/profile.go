package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sharebite/auth-service/internal/models"
	"github.com/sharebite/auth-service/internal/repository"
)

// DefaultAvatarLimit is the largest avatar accepted unless configured otherwise.
const DefaultAvatarLimit int64 = 5 << 20

var (
	// ErrAvatarTooLarge is returned for uploads over the configured limit.
	ErrAvatarTooLarge = fmt.Errorf("%w: avatar file too large", ErrInvalidInput)
	// ErrAvatarStorageDisabled is returned when no avatar store is configured.
	ErrAvatarStorageDisabled = errors.New("avatar storage is not configured")
)

// avatarTypes maps accepted image types to the extension stored with them.
var avatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ProfileUpdate lists the profile fields a user may change. Nil fields are
// left as stored.
type ProfileUpdate struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	About    *string `json:"about"`
}

// AvatarUpload is one image received from a client. Size is the declared
// length, or -1 when unknown.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error)
	UpdateAvatar(ctx context.Context, userID string, upload AvatarUpload) (*models.User, error)
}

type profileService struct {
	users repository.UserRepository
	opts  options
}

func NewProfileService(users repository.UserRepository, opts ...Option) ProfileService {
	return &profileService{users: users, opts: buildOptions(opts)}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}
	return user, nil
}

// normalize applies the per-field rules and returns the columns to write.
func (u ProfileUpdate) normalize() (repository.UserUpdate, error) {
	var out repository.UserUpdate
	v := &ValidationError{}

	if u.Username != nil {
		username := strings.TrimSpace(*u.Username)
		checkUsername(v, username)
		out.Username = &username
	}
	if u.Email != nil {
		email := normalizeEmail(*u.Email)
		checkEmail(v, email)
		out.Email = &email
	}
	if u.Phone != nil {
		phone := normalizePhone(*u.Phone)
		out.Phone = &phone
	}
	if u.About != nil {
		about := truncateRunes(*u.About, MaxAboutLength)
		out.About = &about
	}

	return out, v.OrNil()
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	cols, err := update.normalize()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	user, err := s.users.Update(ctx, userID, cols)
	if err != nil {
		return nil, storeError(err)
	}

	s.opts.logger.InfoContext(ctx, "profile updated", "user_id", userID)
	return user, nil
}

// sniffAvatar reads the image header and returns the detected type along
// with a reader replaying the whole body.
func sniffAvatar(body io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(body, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", nil, err
	}
	if len(head) == 0 {
		return "", nil, invalidField("avatar", "avatar file is empty")
	}
	return http.DetectContentType(head), br, nil
}

// limitedReader fails once more than n bytes have been read.
type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n < 0 {
		return 0, ErrAvatarTooLarge
	}
	if int64(len(p)) > l.n+1 {
		p = p[:l.n+1]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	if l.n < 0 {
		return n, ErrAvatarTooLarge
	}
	return n, err
}

func (s *profileService) UpdateAvatar(ctx context.Context, userID string, upload AvatarUpload) (*models.User, error) {
	if s.opts.avatars == nil {
		return nil, ErrAvatarStorageDisabled
	}
	if upload.Body == nil {
		return nil, invalidField("avatar", "avatar file is required")
	}
	if upload.Size > s.opts.avatarLimit {
		return nil, ErrAvatarTooLarge
	}

	contentType, body, err := sniffAvatar(upload.Body)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, errors.Join(ErrInternal, err)
	}
	ext, ok := avatarTypes[contentType]
	if !ok {
		return nil, invalidField("avatar", "avatar must be a jpeg, png, gif or webp image")
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	current, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, storeError(err)
	}

	ref, err := s.opts.avatars.Save(ctx, ext, contentType, &limitedReader{r: body, n: s.opts.avatarLimit})
	if err != nil {
		if errors.Is(err, ErrAvatarTooLarge) {
			return nil, ErrAvatarTooLarge
		}
		if ctx.Err() != nil {
			return nil, errors.Join(ErrUnavailable, err)
		}
		return nil, errors.Join(ErrInternal, err)
	}

	user, err := s.users.Update(ctx, userID, repository.UserUpdate{Avatar: &ref})
	if err != nil {
		removeAvatar(ctx, s.opts, ref)
		return nil, storeError(err)
	}

	if current.Avatar != "" && current.Avatar != ref {
		removeAvatar(ctx, s.opts, current.Avatar)
	}

	s.opts.logger.InfoContext(ctx, "avatar updated", "user_id", userID, "content_type", contentType)
	return user, nil
}
