package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bienestar-dev/eventos-api/internal/models"
	appErrors "github.com/bienestar-dev/eventos-api/pkg/errors"
	"github.com/bienestar-dev/eventos-api/pkg/export"
)

type certificateGate interface {
	CanReceiveCertificate(ctx context.Context, enrollmentID string) (bool, string, error)
}

type certificateRenderer interface {
	Render(data export.CertificateData) ([]byte, error)
}

type certificateStore interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

type urlSigner interface {
	Generate(enrollmentID, relPath string) (string, time.Time, error)
	Parse(token string) (enrollmentID, relPath string, expiresAt time.Time, err error)
}

// IssuedCertificate is the issuance result returned to the caller. Downloads
// go through the signed token, never a raw file path.
type IssuedCertificate struct {
	EnrollmentID string    `json:"enrollment_id"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CertificateService renders completion certificates for enrollments that
// clear the approval gate and hands out signed download tokens.
type CertificateService struct {
	gate        certificateGate
	enrollments approvalEnrollmentReader
	offerings   offeringReader
	events      eventReader
	renderer    certificateRenderer
	store       certificateStore
	signer      urlSigner
	notifier    Notifier
	logger      *zap.Logger
}

// NewCertificateService constructs the service.
func NewCertificateService(
	gate certificateGate,
	enrollments approvalEnrollmentReader,
	offerings offeringReader,
	events eventReader,
	renderer certificateRenderer,
	store certificateStore,
	signer urlSigner,
	notifier Notifier,
	logger *zap.Logger,
) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CertificateService{
		gate:        gate,
		enrollments: enrollments,
		offerings:   offerings,
		events:      events,
		renderer:    renderer,
		store:       store,
		signer:      signer,
		notifier:    notifier,
		logger:      logger,
	}
}

// Issue renders and stores the certificate for an enrollment, returning a
// signed download token. Only the enrolled participant or an administrator
// may request issuance.
func (s *CertificateService) Issue(ctx context.Context, actor models.Actor, enrollmentID string) (*IssuedCertificate, error) {
	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if detail.ParticipantID != actor.ParticipantID && !actor.Roles.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the enrolled participant or an administrator may request the certificate")
	}

	ok, denial, err := s.gate.CanReceiveCertificate(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, denial)
	}

	offering, err := s.offerings.FindByID(ctx, detail.OfferingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load offering")
	}
	event, err := s.events.FindByID(ctx, offering.EventID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}

	pdf, err := s.renderer.Render(export.CertificateData{
		ParticipantName: detail.ParticipantName,
		EventTitle:      event.Title,
		OfferingName:    offering.Name,
		DurationHours:   offering.DurationHours,
		FinalGrade:      detail.FinalGrade,
		IssuedAt:        time.Now().UTC(),
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}

	relPath := fmt.Sprintf("certificates/%s.pdf", enrollmentID)
	if _, err := s.store.Save(relPath, pdf); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	token, expiresAt, err := s.signer.Generate(enrollmentID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign certificate URL")
	}

	s.logger.Info("certificate issued",
		zap.String("enrollment_id", enrollmentID),
		zap.String("participant_id", detail.ParticipantID))

	if s.notifier != nil {
		s.notifier.Notify(ctx, Notification{
			Type:          NotifyCertificateIssued,
			ParticipantID: detail.ParticipantID,
			OfferingID:    detail.OfferingID,
			EnrollmentID:  enrollmentID,
		})
	}

	return &IssuedCertificate{EnrollmentID: enrollmentID, Token: token, ExpiresAt: expiresAt}, nil
}

// Resolve validates a download token and returns the absolute file path of
// the stored certificate.
func (s *CertificateService) Resolve(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid certificate token")
	}
	return s.store.Path(relPath), nil
}
